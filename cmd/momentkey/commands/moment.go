package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"momentkey/internal/crypto"
	"momentkey/internal/domain"
	momentsvc "momentkey/internal/services/moment"
)

func momentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "moment",
		Short: "Create, seal, open and commit moments",
	}
	cmd.AddCommand(momentCreateCmd(), momentSealCmd(), momentOpenCmd(), momentListCmd(), momentCommitCmd())
	return cmd
}

// presence selects which simulated tokens answer on the link.
type presence struct {
	tokens []string
	away   []string
}

func (p *presence) flags(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&p.tokens, "tokens", nil, "token ids in range (default: all provisioned)")
	cmd.Flags().StringSliceVar(&p.away, "away", nil, "token ids out of range")
}

func (p *presence) links() ([]domain.TokenLink, func(), error) {
	var ids []domain.TokenID
	if len(p.tokens) == 0 {
		all, err := appCtx.Identity.Tokens()
		if err != nil {
			return nil, nil, err
		}
		for _, t := range all {
			ids = append(ids, t.TokenID)
		}
	} else {
		for _, s := range p.tokens {
			id, err := domain.ParseTokenID(s)
			if err != nil {
				return nil, nil, err
			}
			ids = append(ids, id)
		}
	}
	away := make(map[domain.TokenID]bool, len(p.away))
	for _, s := range p.away {
		id, err := domain.ParseTokenID(s)
		if err != nil {
			return nil, nil, err
		}
		away[id] = true
	}
	present := ids[:0]
	for _, id := range ids {
		if !away[id] {
			present = append(present, id)
		}
	}
	if len(present) == 0 {
		return nil, func() {}, nil
	}
	return appCtx.SimulatedTokens(tokenPass(), present)
}

type ranging []byte

func (r ranging) Sample(context.Context) ([]byte, error) {
	if len(r) == 0 {
		return crypto.RandomBytes(32)
	}
	return r, nil
}

func openService() (*momentsvc.Service, error) {
	if err := requirePassphrase(); err != nil {
		return nil, err
	}
	return appCtx.MomentService(passphrase)
}

func momentCreateCmd() *cobra.Command {
	var (
		p         presence
		tag       string
		threshold int
		sample    string
		note      string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Run the group agreement with the tokens in range and record a moment",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openService()
			if err != nil {
				return err
			}
			defer svc.CloseAll()
			links, closeLinks, err := p.links()
			if err != nil {
				return err
			}
			defer closeLinks()

			rec, err := svc.Create(cmd.Context(), momentsvc.CreateRequest{
				Links:      links,
				ContextTag: tag,
				Ranging:    ranging(sample),
				Threshold:  threshold,
			})
			if err != nil {
				return err
			}
			words, err := svc.SafetyWords(rec.MomentID)
			if err != nil {
				return err
			}
			fmt.Printf("Moment: %s\nPolicy: %s %d-of-%d\nParticipants: %d\nSafety words: %s\n",
				rec.MomentID, rec.Policy.Mode, rec.Policy.Threshold, rec.Policy.Total,
				len(rec.Session.Participants), words)
			if note != "" {
				a, err := svc.EncryptArtifact(rec.MomentID, domain.ArtifactNote, []byte(note))
				if err != nil {
					return err
				}
				fmt.Printf("Sealed note %s (seq %d)\n", a.ArtifactID, a.Sequence)
			}
			return nil
		},
	}
	p.flags(cmd)
	cmd.Flags().StringVar(&tag, "tag", "", "context tag, e.g. date_with_Alex")
	cmd.Flags().IntVarP(&threshold, "threshold", "k", 0, "tokens needed to reopen (0: all participants)")
	cmd.Flags().StringVar(&sample, "ranging", "", "ranging sample (default: random)")
	cmd.Flags().StringVar(&note, "note", "", "seal this note right away")
	return cmd
}

func momentSealCmd() *cobra.Command {
	var (
		p    presence
		text string
		file string
	)
	cmd := &cobra.Command{
		Use:   "seal <moment-id>",
		Short: "Encrypt a note or media file under a moment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := domain.ParseMomentID(args[0])
			if err != nil {
				return err
			}
			typ, body := domain.ArtifactNote, []byte(text)
			switch {
			case file != "" && text != "":
				return fmt.Errorf("use either --text or --file")
			case file != "":
				if body, err = os.ReadFile(file); err != nil {
					return err
				}
				typ = domain.ArtifactMedia
			case text == "":
				return fmt.Errorf("nothing to seal: use --text or --file")
			}

			svc, err := openService()
			if err != nil {
				return err
			}
			defer svc.CloseAll()
			links, closeLinks, err := p.links()
			if err != nil {
				return err
			}
			defer closeLinks()

			if err := svc.Reopen(cmd.Context(), id, links); err != nil {
				return err
			}
			a, err := svc.EncryptArtifact(id, typ, body)
			if err != nil {
				return err
			}
			fmt.Printf("Sealed %s %s (seq %d, %d bytes)\n", a.Type, a.ArtifactID, a.Sequence, len(body))
			return nil
		},
	}
	p.flags(cmd)
	cmd.Flags().StringVar(&text, "text", "", "note text")
	cmd.Flags().StringVar(&file, "file", "", "media file")
	return cmd
}

func momentOpenCmd() *cobra.Command {
	var (
		p   presence
		out string
	)
	cmd := &cobra.Command{
		Use:   "open <moment-id>",
		Short: "Reopen a moment with the tokens in range and decrypt its artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := domain.ParseMomentID(args[0])
			if err != nil {
				return err
			}
			svc, err := openService()
			if err != nil {
				return err
			}
			defer svc.CloseAll()
			links, closeLinks, err := p.links()
			if err != nil {
				return err
			}
			defer closeLinks()

			if err := svc.Reopen(cmd.Context(), id, links); err != nil {
				return err
			}
			list, err := svc.Artifacts(id)
			if err != nil {
				return err
			}
			for _, a := range list {
				pt, err := svc.DecryptArtifact(cmd.Context(), id, a, nil)
				if err != nil {
					return fmt.Errorf("artifact %s: %w", a.ArtifactID, err)
				}
				switch {
				case a.Type == domain.ArtifactNote:
					fmt.Printf("[%d] note: %s\n", a.Sequence, pt)
				case out != "":
					path := filepath.Join(out, a.ArtifactID)
					if err := os.WriteFile(path, pt, 0o600); err != nil {
						return err
					}
					fmt.Printf("[%d] media: %s\n", a.Sequence, path)
				default:
					fmt.Printf("[%d] media: %d bytes (use --out to save)\n", a.Sequence, len(pt))
				}
			}
			return nil
		},
	}
	p.flags(cmd)
	cmd.Flags().StringVar(&out, "out", "", "directory for decrypted media")
	return cmd
}

func momentListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recorded moments",
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, err := appCtx.Moments.ListMoments()
			if err != nil {
				return err
			}
			for _, r := range recs {
				fmt.Printf("%s  %s  %s %d-of-%d  tag=%q\n",
					r.MomentID, r.Session.CoarseTimestamp.Format(time.RFC3339),
					r.Policy.Mode, r.Policy.Threshold, r.Policy.Total, r.Session.ContextTag)
			}
			return nil
		},
	}
}

func momentCommitCmd() *cobra.Command {
	var (
		note      string
		at        string
		lat, lon  float64
		highTrust bool
		disclose  map[string]string
	)
	cmd := &cobra.Command{
		Use:   "commit <moment-id>",
		Short: "Publish a redacted commitment for a moment to the ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := domain.ParseMomentID(args[0])
			if err != nil {
				return err
			}
			obs := domain.Observation{At: time.Now(), HighTrust: highTrust}
			if at != "" {
				if obs.At, err = time.Parse(time.RFC3339, at); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("lat") || cmd.Flags().Changed("lon") {
				obs.Point = &domain.GeoPoint{Latitude: lat, Longitude: lon}
			}
			if len(disclose) > 0 {
				obs.Disclosures = make(map[domain.TokenID]string, len(disclose))
				for k, v := range disclose {
					tid, err := domain.ParseTokenID(k)
					if err != nil {
						return err
					}
					obs.Disclosures[tid] = v
				}
			}

			svc, err := openService()
			if err != nil {
				return err
			}
			rc, err := svc.Commit(cmd.Context(), id, []byte(note), obs)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(rc)
		},
	}
	cmd.Flags().StringVar(&note, "note", "", "note whose hash is committed")
	cmd.Flags().StringVar(&at, "at", "", "observation time, RFC3339 (default now)")
	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude (coarsened before publishing)")
	cmd.Flags().Float64Var(&lon, "lon", 0, "longitude (coarsened before publishing)")
	cmd.Flags().BoolVar(&highTrust, "high-trust", false, "mark as a high-trust moment")
	cmd.Flags().StringToStringVar(&disclose, "disclose", nil, "opt-in display names, token-id=name")
	return cmd
}

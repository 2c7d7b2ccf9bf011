package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"spendigo/internal/cli"
	"spendigo/internal/core"
	"spendigo/internal/ledger"
	"spendigo/internal/middleware/ratelimit"
	"spendigo/internal/session"
	"spendigo/internal/voice"
)

// ─── voice ──────────────────────────────────────────────────────────────────

func newVoiceCmd(a *app) *cobra.Command {
	var (
		commit bool
		limit  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "voice [TRANSCRIPT...]",
		Short: "Turn a spoken expense into a draft, optionally recording it",
		Long: `Extracts an expense draft from a transcript. Without arguments the
transcript is read from stdin, one final segment per line, until EOF or the
capture limit. The LLM is used when LLM_API_KEY is set; otherwise, and on
any LLM failure, the basic parser produces the draft.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if _, err := a.ledger(ctx); err != nil {
				return err
			}

			cats, err := a.backend.Ledger.Categories(ctx)
			if err != nil {
				return err
			}
			quota := ratelimit.NewLimiter(ratelimit.Config{
				Requests: a.cfg.VoiceRateLimit,
				Window:   a.cfg.VoiceRateWindow,
			})
			defer quota.Stop()
			extractor := voice.NewExtractor(cli.NewLLM(a.cfg, a.logger), quota, core.CatalogFrom(cats), a.logger, time.Now)
			sessions := session.NewManager(a.backend.Ledger, extractor, a.logger, time.Now)
			defer sessions.CloseAll()

			sess, err := sessions.Open(ctx, a.user)
			if err != nil {
				return err
			}

			var ext voice.Extraction
			if len(args) > 0 {
				ext, err = sess.Extract(ctx, strings.Join(args, " "))
			} else {
				ext, err = sess.Dictate(ctx, voice.NewCapture(limit), readSegments(cmd.InOrStdin()))
			}
			if err != nil {
				return err
			}

			result := struct {
				Extraction voice.Extraction `json:"extraction"`
				Commit     *ledger.Commit   `json:"commit,omitempty"`
			}{Extraction: ext}
			if commit {
				c, err := sess.Ledger().CreateExpense(ctx, a.user, ext.Draft())
				if err != nil {
					return fmt.Errorf("record draft: %w", err)
				}
				result.Commit = &c
			}

			return a.emit(cmd.OutOrStdout(), result, func(w io.Writer) error {
				if err := printExtraction(w, ext); err != nil {
					return err
				}
				if result.Commit != nil {
					return printCommit(w, "Recorded", *result.Commit)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&commit, "commit", false, "Record the draft as an expense")
	cmd.Flags().DurationVar(&limit, "limit", voice.MaxCaptureDuration, "Stop reading stdin after this long (at most 30s)")
	return cmd
}

// readSegments streams each non-empty stdin line as a final segment.
func readSegments(r io.Reader) <-chan voice.Segment {
	out := make(chan voice.Segment)
	go func() {
		defer close(out)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			if line := strings.TrimSpace(sc.Text()); line != "" {
				out <- voice.Segment{Text: line, Final: true}
			}
		}
	}()
	return out
}

func printExtraction(w io.Writer, ext voice.Extraction) error {
	_, err := fmt.Fprintf(w, `Transcript: %s
Path:       %s
Amount:     %s
Vendor:     %s
Date:       %s
Category:   %s
Source:     %s
Confidence: %d%%
`, ext.Transcript, ext.Path, core.FormatINR(ext.Amount), ext.Vendor, ext.Date,
		ext.Category, ext.SourceID, ext.Confidence)
	if err != nil {
		return err
	}
	if ext.Notice != "" {
		_, err = fmt.Fprintf(w, "Notice:     %s\n", ext.Notice)
	}
	return err
}

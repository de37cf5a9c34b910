package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/onnwee/feedrank/internal/content"
	"github.com/onnwee/feedrank/internal/feed"
	"github.com/onnwee/feedrank/internal/ranking"
)

// feedFile is the on-disk input format. JSON is valid YAML, so both parse.
// Raw items may be mixed with event and post records, which are filtered
// and converted the same way the content store does.
type feedFile struct {
	Context *fileContext     `yaml:"context"`
	Items   []fileItem       `yaml:"items"`
	Events  []*content.Event `yaml:"events"`
	Posts   []*content.Post  `yaml:"posts"`
}

type fileContext struct {
	UserID   string             `yaml:"user_id"`
	Affinity map[string]float64 `yaml:"affinity"`
}

type fileItem struct {
	Kind      string             `yaml:"kind"`
	ID        string             `yaml:"id"`
	Timestamp string             `yaml:"timestamp"`
	Signals   map[string]float64 `yaml:"signals"`
}

type rankOptions struct {
	file        string
	mode        string
	now         string
	scorer      string
	calibration string
	user        string
	output      string
}

func newRankCmd(root *rootOptions) *cobra.Command {
	opts := &rankOptions{}

	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Rank the items in a YAML or JSON file",
		Example: `  rankctl rank --file feed.yaml
  rankctl rank --file feed.json --scorer affinity --now 2024-06-01T12:00:00Z
  cat feed.yaml | rankctl rank --file - --mode timestamp -o yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRank(cmd, root, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.file, "file", "f", "", "feed file to rank (- for stdin)")
	f.StringVar(&opts.mode, "mode", feed.ModeScore, "ordering: score or timestamp")
	f.StringVar(&opts.now, "now", "", "reference time for scoring (RFC 3339, default current time)")
	f.StringVar(&opts.scorer, "scorer", feed.ScorerDecay, "registered scorer name")
	f.StringVar(&opts.calibration, "calibration", "", "ranking calibration JSON file")
	f.StringVar(&opts.user, "user", "", "override context.user_id from the file")
	f.StringVarP(&opts.output, "output", "o", "json", "output format: json or yaml")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runRank(cmd *cobra.Command, root *rootOptions, opts *rankOptions) error {
	if opts.mode != feed.ModeScore && opts.mode != feed.ModeTimestamp {
		return fmt.Errorf("--mode must be %s or %s", feed.ModeScore, feed.ModeTimestamp)
	}
	if opts.output != "json" && opts.output != "yaml" {
		return fmt.Errorf("--output must be json or yaml")
	}

	var now time.Time
	if opts.now != "" {
		t, err := time.Parse(time.RFC3339Nano, opts.now)
		if err != nil {
			return fmt.Errorf("--now: %w", err)
		}
		now = t
	}

	doc, err := readFeedFile(cmd.InOrStdin(), opts.file)
	if err != nil {
		return err
	}
	items, err := doc.feedItems()
	if err != nil {
		return err
	}
	uc := doc.userContext()
	if opts.user != "" {
		if uc == nil {
			uc = &feed.UserContext{}
		}
		uc.UserID = opts.user
	}

	logger := root.logger(cmd)
	weights, err := ranking.LoadCalibration(opts.calibration)
	if err != nil {
		return err
	}
	scorer, err := ranking.NewScorer(feed.NewDefaultRegistry(), opts.scorer, weights)
	if err != nil {
		return err
	}
	ranker := feed.NewRanker(scorer, feed.WithLogger(logger))

	var ranked []feed.Item
	switch {
	case opts.mode == feed.ModeTimestamp:
		ranked, err = ranker.RankByTimestamp(items)
	case now.IsZero():
		ranked, err = ranker.RankByScore(items, uc)
	default:
		ranked, err = ranker.RankByScoreAt(items, uc, now)
	}
	if err != nil {
		return err
	}
	logger.Debug("ranked feed", "items", len(ranked), "mode", opts.mode, "scorer", opts.scorer)

	return writeItems(cmd.OutOrStdout(), opts.output, ranked)
}

func readFeedFile(stdin io.Reader, path string) (*feedFile, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read feed file: %w", err)
	}

	var doc feedFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse feed file: %w", err)
	}
	return &doc, nil
}

func (d *feedFile) feedItems() ([]feed.Item, error) {
	items := make([]feed.Item, len(d.Items), len(d.Items)+len(d.Events)+len(d.Posts))
	for i, it := range d.Items {
		ts, err := feed.ParseTimestamp(it.ID, it.Timestamp)
		if err != nil {
			return nil, &feed.ItemError{Index: i, ID: it.ID, Err: err}
		}
		items[i] = feed.Item{
			Kind:      feed.Kind(strings.TrimSpace(it.Kind)),
			ID:        it.ID,
			Timestamp: ts,
			Signals:   it.Signals,
		}
	}
	return append(items, content.Collect(d.Events, d.Posts)...), nil
}

func (d *feedFile) userContext() *feed.UserContext {
	if d.Context == nil {
		return nil
	}
	uc := &feed.UserContext{UserID: d.Context.UserID}
	if len(d.Context.Affinity) > 0 {
		uc.Affinity = make(map[feed.Kind]float64, len(d.Context.Affinity))
		for k, v := range d.Context.Affinity {
			uc.Affinity[feed.Kind(k)] = v
		}
	}
	return uc
}

// outputItem mirrors feed.Item for YAML output with RFC 3339 timestamps.
type outputItem struct {
	Kind      string             `yaml:"kind"`
	ID        string             `yaml:"id"`
	Timestamp string             `yaml:"timestamp"`
	Rank      *float64           `yaml:"rank,omitempty"`
	Signals   map[string]float64 `yaml:"signals,omitempty"`
}

func writeItems(w io.Writer, format string, items []feed.Item) error {
	if format == "yaml" {
		out := make([]outputItem, len(items))
		for i, it := range items {
			out[i] = outputItem{
				Kind:      string(it.Kind),
				ID:        it.ID,
				Timestamp: it.Timestamp.Format(time.RFC3339Nano),
				Rank:      it.Rank,
				Signals:   it.Signals,
			}
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(map[string]any{"items": out}); err != nil {
			return err
		}
		return enc.Close()
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{"items": items, "count": len(items)})
}

func newScorersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scorers",
		Short: "List the registered scorer names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range feed.NewDefaultRegistry().Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

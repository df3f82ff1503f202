package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/skyfeed/config"
	"github.com/otherjamesbrown/skyfeed/pkg/blend"
	sferrors "github.com/otherjamesbrown/skyfeed/pkg/errors"
	"github.com/otherjamesbrown/skyfeed/pkg/feedgen"
)

type blendOptions struct {
	listsFile string
	feed      string
	pattern   string
	order     []string
	limit     int
}

// NewBlendCommand creates the 'blend' command.
func NewBlendCommand(deps *Deps) *cobra.Command {
	deps = orDefault(deps)
	opts := &blendOptions{}

	cmd := &cobra.Command{
		Use:   "blend",
		Short: "Blend ranked lists offline and print the skeleton",
		Long: `Blend ranked lists from a JSON file and print the feed skeleton the
feed generator would serve for them.

The lists file maps window names to post identifiers, best first:
  {"hour": ["at://...", ...], "day": [...], "week": [...]}

Select the blend with one of:
  --feed      a feed defined in the configuration file
  --pattern   an interleave pattern such as "hour0,hour1,day0"
  --order     windows to concatenate in order (flatten mode)
With none of them, the default pattern is used.

Examples:
  skyfeed blend --lists lists.json
  skyfeed blend --lists lists.json --feed toplinksday --limit 10
  skyfeed blend --lists lists.json --pattern "hour0,day0,hour1,day1"
  skyfeed blend --lists - --order week,day < lists.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBlend(cmd, deps, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.listsFile, "lists", "l", "", "JSON file of ranked lists (- for stdin)")
	cmd.Flags().StringVarP(&opts.feed, "feed", "f", "", "Feed name from the configuration file")
	cmd.Flags().StringVarP(&opts.pattern, "pattern", "p", "", "Interleave pattern, e.g. hour0,day0,hour1")
	cmd.Flags().StringSliceVar(&opts.order, "order", nil, "Windows to concatenate (flatten mode)")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of posts (0 for no limit)")
	_ = cmd.MarkFlagRequired("lists")
	cmd.MarkFlagsMutuallyExclusive("feed", "pattern", "order")

	return cmd
}

func runBlend(cmd *cobra.Command, deps *Deps, opts *blendOptions) error {
	lists, err := readLists(cmd.InOrStdin(), opts.listsFile)
	if err != nil {
		return err
	}

	var b blend.Blender
	switch {
	case opts.feed != "":
		cfg, err := loadConfig(cmd, deps)
		if err != nil {
			return err
		}
		fc, ok := cfg.Feedgen.Feeds[opts.feed]
		if !ok {
			return fmt.Errorf("%w: feed %q is not configured", sferrors.ErrNotFound, opts.feed)
		}
		if b, err = fc.Blender(); err != nil {
			return err
		}
	case opts.pattern != "":
		p, err := blend.ParsePatternString(opts.pattern)
		if err != nil {
			return err
		}
		b = blend.NewPatternBlender(p)
	case len(opts.order) > 0:
		b = blend.NewFlattenBlender(opts.order...)
	default:
		b = blend.NewPatternBlender(blend.DefaultPattern())
	}

	skeleton := feedgen.Blend(lists, b, opts.limit)
	format := config.OutputFormat(rootString(cmd, "output"))
	return WriteOutput(cmd.OutOrStdout(), format, skeleton, func(w io.Writer) error {
		return json.NewEncoder(w).Encode(skeleton)
	})
}

// readLists decodes a lists document from path, or from stdin when path is "-".
func readLists(stdin io.Reader, path string) (blend.Lists, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening lists file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var lists blend.Lists
	if err := json.NewDecoder(r).Decode(&lists); err != nil {
		return nil, fmt.Errorf("%w: lists file: %v", sferrors.ErrMalformedUpstream, err)
	}
	return lists, nil
}

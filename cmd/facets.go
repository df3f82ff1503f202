package cmd

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/skyfeed/config"
	"github.com/otherjamesbrown/skyfeed/pkg/richtext"
)

type facetsOptions struct {
	text     string
	links    []string
	mentions []string
	spans    []string
	unit     string
}

// NewFacetsCommand creates the 'facets' command.
func NewFacetsCommand() *cobra.Command {
	opts := &facetsOptions{}

	cmd := &cobra.Command{
		Use:   "facets",
		Short: "Annotate text with link and mention facets",
		Long: `Annotate text with link and mention facets and print the result.

Each --link display=uri marks the first occurrence of display as a link.
Each --mention handle=did marks the first "@handle" token as a mention.
Each --link-span start:end=uri links an explicit range, counted in --unit
(utf16 code units, as editors report them, or runes).
Byte offsets are those the post record would carry.

Examples:
  skyfeed facets --text "Read The Blue Report" --link "The Blue Report=https://theblue.report"
  skyfeed facets --text "hi @alice.test 👋" --mention alice.test=did:plc:alice
  skyfeed facets --text "hi 👋 there" --link-span 6:11=https://a.example --unit runes
  skyfeed facets --text "..." --link a=https://a.example --output json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFacets(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.text, "text", "t", "", "Text to annotate")
	cmd.Flags().StringArrayVar(&opts.links, "link", nil, "Link as display=uri (repeatable)")
	cmd.Flags().StringArrayVar(&opts.mentions, "mention", nil, "Mention as handle=did (repeatable)")
	cmd.Flags().StringArrayVar(&opts.spans, "link-span", nil, "Link an offset range as start:end=uri (repeatable)")
	cmd.Flags().StringVar(&opts.unit, "unit", string(richtext.UnitUTF16), "Offset unit for --link-span: utf16 or runes")
	_ = cmd.MarkFlagRequired("text")

	return cmd
}

func runFacets(cmd *cobra.Command, opts *facetsOptions) error {
	post, err := annotate(opts)
	if err != nil {
		return err
	}
	// Fail on overlapping entities before printing anything.
	segments, err := richtext.Segments(post.Text, post.Facets)
	if err != nil {
		return err
	}

	format := config.OutputFormat(rootString(cmd, "output"))
	return WriteOutput(cmd.OutOrStdout(), format, post, func(w io.Writer) error {
		fmt.Fprintf(w, "Text (%d bytes, %d UTF-16 units, %d graphemes):\n  %s\n",
			len(post.Text), richtext.UTF16Len(post.Text), richtext.GraphemeLen(post.Text), post.Text)
		if len(post.Facets) == 0 {
			fmt.Fprintln(w, "\nNo facets.")
			return nil
		}
		fmt.Fprintln(w, "\nFacets:")
		for _, f := range post.Facets {
			span, _ := f.Slice(post.Text)
			for _, feat := range f.Features {
				fmt.Fprintf(w, "  [%d, %d)  %-8s %-40s %q\n",
					f.Index.ByteStart, f.Index.ByteEnd, featureKind(feat), featureTarget(feat), span)
			}
		}
		fmt.Fprintf(w, "\n%d segment(s)\n", len(segments))
		return nil
	})
}

// annotate locates every requested entity in the text.
func annotate(opts *facetsOptions) (*richtext.Post, error) {
	post := &richtext.Post{Text: opts.text, Facets: []richtext.Facet{}}
	for _, l := range opts.links {
		display, uri, err := splitPair(l)
		if err != nil {
			return nil, fmt.Errorf("--link: %w", err)
		}
		f, err := richtext.LocateLink(opts.text, display, uri)
		if err != nil {
			return nil, err
		}
		post.Facets = append(post.Facets, f)
	}
	for _, m := range opts.mentions {
		handle, did, err := splitPair(m)
		if err != nil {
			return nil, fmt.Errorf("--mention: %w", err)
		}
		f, err := richtext.LocateMention(opts.text, handle, did)
		if err != nil {
			return nil, err
		}
		post.Facets = append(post.Facets, f)
	}
	if len(opts.spans) > 0 {
		unit, err := richtext.ParseUnit(opts.unit)
		if err != nil {
			return nil, err
		}
		text := richtext.NewText(opts.text)
		for _, sp := range opts.spans {
			f, err := spanFacet(text, sp, unit)
			if err != nil {
				return nil, err
			}
			post.Facets = append(post.Facets, f)
		}
	}
	slices.SortStableFunc(post.Facets, func(a, b richtext.Facet) int {
		return a.Index.ByteStart - b.Index.ByteStart
	})
	return post, nil
}

// spanFacet parses start:end=uri into a link facet over that range.
func spanFacet(text *richtext.Text, s string, unit richtext.Unit) (richtext.Facet, error) {
	rng, uri, err := splitPair(s)
	if err != nil {
		return richtext.Facet{}, fmt.Errorf("--link-span: %w", err)
	}
	from, to, ok := strings.Cut(rng, ":")
	start, errStart := strconv.Atoi(from)
	end, errEnd := strconv.Atoi(to)
	if !ok || errStart != nil || errEnd != nil {
		return richtext.Facet{}, fmt.Errorf("--link-span: invalid range %q, expected start:end", rng)
	}

	index, err := text.ByteRange(start, end, unit)
	if err != nil {
		return richtext.Facet{}, fmt.Errorf("--link-span %s: %w", rng, err)
	}
	return richtext.Facet{Index: index, Features: []richtext.Feature{richtext.Link{URI: uri}}}, nil
}

func featureKind(f richtext.Feature) string {
	switch f.(type) {
	case richtext.Link:
		return "link"
	case richtext.Mention:
		return "mention"
	case richtext.Tag:
		return "tag"
	}
	return f.FeatureType()
}

func featureTarget(f richtext.Feature) string {
	switch v := f.(type) {
	case richtext.Link:
		return v.URI
	case richtext.Mention:
		return v.DID
	case richtext.Tag:
		return "#" + v.Tag
	}
	return ""
}

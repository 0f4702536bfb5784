package cmd

import (
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"firestige.xyz/strix/internal/metrics"
	"firestige.xyz/strix/pkg/capture"
	"firestige.xyz/strix/pkg/pcapng"
)

var (
	convertStart     string
	convertIncrement time.Duration
	convertAppend    bool
	convertFilter    string
)

// convertCmd replays a stored capture (pcap or pcapng, anything
// libpcap reads) and rewrites it as a fresh single-section pcapng
// file. With both --start and --increment the packets become enhanced
// blocks carrying synthetic timestamps; otherwise simple blocks.
var convertCmd = &cobra.Command{
	Use:   "convert IN OUT",
	Short: "Rewrite a stored capture as a pcapng file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := capture.OpenOffline(args[0])
		if err != nil {
			return err
		}
		defer h.Close()

		var matcher *capture.Matcher
		if convertFilter != "" {
			matcher, err = capture.NewMatcher(convertFilter, 65535)
			if err != nil {
				return err
			}
		}

		var raws [][]byte
		for {
			data, _, err := h.ReadFrame()
			if err != nil {
				// libpcap signals end of a stored capture as an error
				slog.Debug("replay ended", "error", err)
				break
			}
			if matcher != nil && !matcher.Match(data) {
				continue
			}
			raws = append(raws, data)
		}

		opts := pcapng.ConvertOptions{LinkType: h.LinkType()}
		if convertStart != "" && convertIncrement > 0 {
			start, err := time.Parse(time.RFC3339, convertStart)
			if err != nil {
				return err
			}
			opts.Start = start
			opts.Increment = convertIncrement
		}
		f, err := pcapng.FromPackets(raws, opts)
		if err != nil {
			return err
		}
		for range raws {
			kind := "spb"
			if !opts.Start.IsZero() && opts.Increment > 0 {
				kind = "epb"
			}
			metrics.BlocksWritten.WithLabelValues(kind).Inc()
		}
		if err := f.WriteFile(args[1], convertAppend); err != nil {
			return err
		}
		cmd.Printf("wrote %d packets to %s\n", len(raws), args[1])
		return nil
	},
}

func init() {
	convertCmd.Flags().StringVar(&convertStart, "start", "",
		"base timestamp (RFC 3339) for enhanced blocks")
	convertCmd.Flags().DurationVar(&convertIncrement, "increment", 0,
		"timestamp increment per packet")
	convertCmd.Flags().BoolVar(&convertAppend, "append", false,
		"append the new section to an existing file")
	convertCmd.Flags().StringVarP(&convertFilter, "filter", "f", "",
		"BPF expression selecting the frames to keep")
}

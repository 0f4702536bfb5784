package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"firestige.xyz/strix/internal/metrics"
	"firestige.xyz/strix/pkg/capture"
	"firestige.xyz/strix/pkg/pcapng"
	"firestige.xyz/strix/pkg/protos"
)

var (
	dumpProto  string
	dumpFilter string
)

var dumpCmd = &cobra.Command{
	Use:   "dump FILE",
	Short: "Dissect every stored packet layer by layer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := pcapng.Open(args[0])
		if err != nil {
			return err
		}
		reg := protos.Default()
		if _, ok := reg.Proto(dumpProto); !ok {
			exitWithError("unknown protocol "+dumpProto, nil)
		}
		var matcher *capture.Matcher
		if dumpFilter != "" {
			matcher, err = capture.NewMatcher(dumpFilter, 65535)
			if err != nil {
				return err
			}
		}
		for i, raw := range f.Packets() {
			if matcher != nil && !matcher.Match(raw) {
				continue
			}
			pkt, err := reg.Dissect(dumpProto, raw)
			if err != nil {
				metrics.DissectErrors.Inc()
				slog.Warn("dissection failed", "packet", i, "error", err)
				continue
			}
			metrics.FramesDissected.WithLabelValues(dumpProto).Inc()
			cmd.Printf("── packet %d (%d bytes) ──\n%s", i, len(raw), pkt.String())
		}
		return nil
	},
}

func init() {
	dumpCmd.Flags().StringVar(&dumpProto, "proto", protos.Ethernet,
		"outermost protocol of the stored packets")
	dumpCmd.Flags().StringVarP(&dumpFilter, "filter", "f", "",
		"BPF expression applied to frames before dissection")
}

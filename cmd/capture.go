package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"firestige.xyz/strix/internal/metrics"
	"firestige.xyz/strix/pkg/capture"
	"firestige.xyz/strix/pkg/netdev"
	"firestige.xyz/strix/pkg/pcapng"
)

var (
	captureIface  string
	captureOut    string
	captureCount  int
	captureFilter string
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Capture live frames into a pcapng file",
	RunE: func(cmd *cobra.Command, args []string) error {
		iface := captureIface
		if iface == "" {
			iface = cfg.Capture.Interface
		}
		if iface == "" {
			dev, err := netdev.Default()
			if err != nil {
				return err
			}
			iface = dev.Name
		}
		filter := captureFilter
		if filter == "" {
			filter = cfg.Capture.Filter
		}

		if cfg.Metrics.Enabled {
			srv := metrics.NewServer(cfg.Metrics.Addr, cfg.Metrics.Path)
			if err := srv.Start(context.Background()); err != nil {
				return err
			}
			defer func() {
				if err := srv.Stop(); err != nil {
					slog.Error("metrics server shutdown error", "error", err)
				}
			}()
		}

		h, err := capture.OpenLive(iface, cfg.Capture.SnapLen, cfg.Capture.Promisc, time.Second)
		if err != nil {
			return err
		}
		defer h.Close()
		if filter != "" {
			if err := h.SetFilter(filter); err != nil {
				return err
			}
		}
		slog.Info("capturing", "interface", iface, "count", captureCount)

		sec := pcapng.NewSection(nil)
		ifc := sec.AddInterface(&pcapng.Interface{
			LinkType: h.LinkType(),
			SnapLen:  uint32(cfg.Capture.SnapLen),
		})
		for n := 0; n < captureCount; {
			data, ts, err := h.ReadFrame()
			if err != nil {
				slog.Warn("read failed", "error", err)
				continue
			}
			if _, err := ifc.AddEPB(data, ts); err != nil {
				return err
			}
			metrics.CaptureFrames.WithLabelValues(iface).Inc()
			metrics.BlocksWritten.WithLabelValues("epb").Inc()
			n++
		}

		f := &pcapng.File{Sections: []*pcapng.Section{sec}}
		if err := f.WriteFile(captureOut, false); err != nil {
			return err
		}
		cmd.Printf("wrote %d packets to %s\n", captureCount, captureOut)
		return nil
	},
}

func init() {
	captureCmd.Flags().StringVarP(&captureIface, "interface", "i", "", "interface to capture on")
	captureCmd.Flags().StringVarP(&captureOut, "output", "o", "capture.pcapng", "output file")
	captureCmd.Flags().IntVarP(&captureCount, "count", "n", 10, "number of frames to capture")
	captureCmd.Flags().StringVarP(&captureFilter, "filter", "f", "", "BPF filter expression")
}

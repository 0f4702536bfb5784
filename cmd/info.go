package cmd

import (
	"encoding/binary"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"firestige.xyz/strix/internal/metrics"
	"firestige.xyz/strix/pkg/pcapng"
)

var infoFormat string

// sectionInfo is the YAML/text projection of one parsed section.
type sectionInfo struct {
	ByteOrder  string          `yaml:"byte_order"`
	Version    string          `yaml:"version"`
	Interfaces []interfaceInfo `yaml:"interfaces"`
	Unknown    int             `yaml:"unknown_blocks"`
}

type interfaceInfo struct {
	LinkType uint16 `yaml:"link_type"`
	SnapLen  uint32 `yaml:"snap_len"`
	Packets  int    `yaml:"packets"`
}

var infoCmd = &cobra.Command{
	Use:   "info FILE",
	Short: "Summarize sections, interfaces and packets of a pcapng file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := pcapng.Open(args[0])
		if err != nil {
			return err
		}
		infos := make([]sectionInfo, 0, len(f.Sections))
		for _, s := range f.Sections {
			countBlocks(s)
			si := sectionInfo{
				ByteOrder: orderName(s.ByteOrder),
				Version:   fmt.Sprintf("%d.%d", s.Major, s.Minor),
				Unknown:   len(s.Unknown()),
			}
			for _, ifc := range s.Interfaces {
				si.Interfaces = append(si.Interfaces, interfaceInfo{
					LinkType: ifc.LinkType,
					SnapLen:  ifc.SnapLen,
					Packets:  len(ifc.Packets),
				})
			}
			infos = append(infos, si)
		}

		if infoFormat == "yaml" {
			out, err := yaml.Marshal(infos)
			if err != nil {
				return err
			}
			cmd.Print(string(out))
			return nil
		}
		for i, si := range infos {
			cmd.Printf("section %d: %s v%s, %d interface(s), %d unknown block(s)\n",
				i, si.ByteOrder, si.Version, len(si.Interfaces), si.Unknown)
			for j, ifc := range si.Interfaces {
				cmd.Printf("  interface %d: linktype=%d snaplen=%d packets=%d\n",
					j, ifc.LinkType, ifc.SnapLen, ifc.Packets)
			}
		}
		return nil
	},
}

func orderName(bo binary.ByteOrder) string {
	if bo == binary.BigEndian {
		return "big-endian"
	}
	return "little-endian"
}

func countBlocks(s *pcapng.Section) {
	for _, b := range s.Blocks {
		switch b.(type) {
		case *pcapng.Interface:
			metrics.BlocksRead.WithLabelValues("idb").Inc()
		case *pcapng.EPB:
			metrics.BlocksRead.WithLabelValues("epb").Inc()
		case *pcapng.SPB:
			metrics.BlocksRead.WithLabelValues("spb").Inc()
		default:
			metrics.BlocksRead.WithLabelValues("unknown").Inc()
		}
	}
}

func init() {
	infoCmd.Flags().StringVar(&infoFormat, "format", "text", "output format (text|yaml)")
}

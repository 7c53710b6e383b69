package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/threadpager/internal/appconfig"
	"pkt.systems/threadpager/internal/collection"
	"pkt.systems/threadpager/internal/localecmp"
	"pkt.systems/threadpager/schema"
)

func newStreamsCmd() *cobra.Command {
	var cfgPath string
	var stateDir string
	cmd := &cobra.Command{
		Use:   "streams",
		Short: "List persisted streams",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			if stateDir != "" {
				cfg.StateDir = stateDir
			}
			store, err := collection.NewStoreWithLogger(cfg.StateDir, pslog.Ctx(cmd.Context()), nil)
			if err != nil {
				return err
			}
			infos, err := store.Streams()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, info := range sortStreams(infos, localecmp.New(cfg.Locale)) {
				snap, _, err := store.Load(info.ID)
				if err != nil {
					return err
				}
				kind := "chat"
				if info.AggregateBearing {
					kind = "report"
				}
				if _, err := fmt.Fprintf(out, "%s\t%s\t%d entries\n", info.ID, kind, len(snap.Entries)); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&stateDir, "state-dir", "", "override the state directory")
	return cmd
}

func sortStreams(infos []schema.StreamInfo, collator *localecmp.Collator) []schema.StreamInfo {
	byID := make(map[string]schema.StreamInfo, len(infos))
	ids := make([]string, 0, len(infos))
	for _, info := range infos {
		byID[string(info.ID)] = info
		ids = append(ids, string(info.ID))
	}
	collator.Sort(ids)
	out := make([]schema.StreamInfo, 0, len(ids))
	for _, id := range ids {
		out = append(out, byID[id])
	}
	return out
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"pkt.systems/pslog"
	"pkt.systems/threadpager"
	"pkt.systems/threadpager/core"
	"pkt.systems/threadpager/internal/appconfig"
	"pkt.systems/threadpager/internal/collection"
	"pkt.systems/threadpager/internal/dispatch"
	"pkt.systems/threadpager/schema"
)

// scenario is a scripted session: remote histories, the locally cached part
// of each, and the steps a view takes.
type scenario struct {
	PageSize  int              `yaml:"page_size"`
	PageLimit int              `yaml:"page_limit"`
	Primary   schema.StreamID  `yaml:"primary"`
	Satellite schema.StreamID  `yaml:"satellite"`
	Streams   []scenarioStream `yaml:"streams"`
	Steps     []scenarioStep   `yaml:"steps"`
}

type scenarioStream struct {
	Info   schema.StreamInfo `yaml:"info"`
	Remote []schema.Entry    `yaml:"remote"`
	// Local is how many of the newest remote entries start in the store.
	Local int `yaml:"local"`
}

type scenarioStep struct {
	Op        string          `yaml:"op"`
	Target    schema.EntryID  `yaml:"target"`
	Force     bool            `yaml:"force"`
	Value     bool            `yaml:"value"`
	Stream    schema.StreamID `yaml:"stream"`
	Direction string          `yaml:"direction"`
}

func newReplayCmd() *cobra.Command {
	var cfgPath string
	var stateDir string
	cmd := &cobra.Command{
		Use:   "replay <scenario.yaml>",
		Short: "Replay a pagination scenario and print every window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			sc, err := loadScenario(args[0])
			if err != nil {
				return err
			}
			if stateDir == "" {
				dir, err := os.MkdirTemp("", "threadpager-replay-*")
				if err != nil {
					return err
				}
				defer os.RemoveAll(dir)
				stateDir = dir
			}
			cfg.StateDir = stateDir
			return runReplay(cmd.Context(), cmd.OutOrStdout(), cfg, sc)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&stateDir, "state-dir", "", "keep the replayed store in this directory")
	return cmd
}

func loadScenario(path string) (scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return scenario{}, err
	}
	var sc scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return scenario{}, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if sc.Primary == "" {
		return scenario{}, errors.New("scenario primary stream is required")
	}
	return sc, nil
}

func runReplay(ctx context.Context, out io.Writer, cfg appconfig.Config, sc scenario) error {
	pager := cfg.SessionConfig()
	if sc.PageSize > 0 {
		pager.PageSize = sc.PageSize
	}
	limit := cfg.Dispatch.PageLimit
	if sc.PageLimit > 0 {
		limit = sc.PageLimit
	}
	remote := collection.NewMemorySource()
	host, err := threadpager.New(threadpager.Config{
		StateDir: cfg.StateDir,
		Pager:    pager,
		Dispatch: dispatch.Config{
			PageLimit:     limit,
			RatePerSecond: cfg.Dispatch.RatePerSecond,
			Burst:         cfg.Dispatch.Burst,
			Timeout:       cfg.DispatchTimeout(),
		},
		BusDepth: cfg.Bus.Depth,
	}, threadpager.Deps{Loader: remote, Logger: pslog.Ctx(ctx)})
	if err != nil {
		return err
	}
	defer host.Close()

	for _, st := range sc.Streams {
		if err := seedStream(host.Store(), remote, st); err != nil {
			return err
		}
	}
	session, err := host.Open(sc.Primary)
	if err != nil {
		return err
	}
	if sc.Satellite != "" {
		if err := host.Attach(sc.Primary, sc.Satellite); err != nil {
			return err
		}
	}
	host.Settle()
	if err := printWindow(out, "open", session.Snapshot()); err != nil {
		return err
	}
	for i, step := range sc.Steps {
		label, err := applyStep(ctx, session, remote, step)
		if err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
		host.Settle()
		if err := printWindow(out, fmt.Sprintf("%d %s", i+1, label), session.Snapshot()); err != nil {
			return err
		}
	}
	return nil
}

func seedStream(store *collection.Store, remote *collection.MemorySource, st scenarioStream) error {
	id, err := schema.NormalizeStreamID(string(st.Info.ID))
	if err != nil {
		return err
	}
	st.Info.ID = id
	remote.Put(id, st.Remote...)
	sorted := core.SortEntries(st.Remote)
	local := st.Local
	if local > len(sorted) || local < 0 {
		local = len(sorted)
	}
	return store.Save(id, collection.Snapshot{Info: st.Info, Entries: sorted[len(sorted)-local:]})
}

func applyStep(ctx context.Context, s *core.Session, remote *collection.MemorySource, step scenarioStep) (string, error) {
	switch strings.ToLower(step.Op) {
	case "link":
		s.SetLinkTarget(step.Target)
		return fmt.Sprintf("link %q", step.Target), nil
	case "older":
		return describe("older", s.RequestOlder(ctx, step.Force)), nil
	case "newer":
		return describe("newer", s.RequestNewer(ctx, step.Force)), nil
	case "retry":
		d, err := schema.NormalizeDirection(step.Direction)
		if err != nil {
			return "", err
		}
		return describe("retry "+string(d), s.Retry(ctx, d)), nil
	case "offline":
		s.SetOffline(step.Value)
		return fmt.Sprintf("offline=%t", step.Value), nil
	case "focus":
		s.SetFocused(step.Value)
		return fmt.Sprintf("focused=%t", step.Value), nil
	case "loading":
		s.SetLoadingInitial(step.Value)
		return fmt.Sprintf("loading=%t", step.Value), nil
	case "fail":
		d, err := schema.NormalizeDirection(step.Direction)
		if err != nil {
			return "", err
		}
		remote.FailNext(step.Stream, d, fmt.Errorf("injected %s failure", d))
		return fmt.Sprintf("fail next %s %s", step.Stream, d), nil
	case "show":
		return "show", nil
	default:
		return "", fmt.Errorf("unknown op %q", step.Op)
	}
}

func describe(op string, dec core.Decision) string {
	if dec.Outcome == core.OutcomeSkipped {
		return fmt.Sprintf("%s: skipped (%s)", op, dec.Reason)
	}
	return fmt.Sprintf("%s: %s", op, dec.Outcome)
}

func printWindow(out io.Writer, label string, state schema.WindowState) error {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] window %d..%d of %d anchor=%d older=%s newer=%s",
		label, state.Start, state.End, state.LogLength, state.AnchorIndex,
		directionStatus(state.IsLoadingOlder, state.HasOlderError, state.OlderExhausted),
		directionStatus(state.IsLoadingNewer, state.HasNewerError, state.NewerExhausted))
	if state.TargetNotFound {
		b.WriteString(" target=missing")
	}
	if state.ParentRef != nil {
		fmt.Fprintf(&b, " parent=%s", state.ParentRef.ID)
	}
	b.WriteByte('\n')
	for _, e := range state.Entries {
		fmt.Fprintf(&b, "  %s %s %s", e.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z"), e.ID, e.Kind)
		if e.Synthetic {
			b.WriteString(" synthetic")
		}
		if e.Pending != schema.PendingNone {
			fmt.Fprintf(&b, " pending=%s", e.Pending)
		}
		if e.Origin == schema.OriginSatellite {
			b.WriteString(" satellite")
		}
		b.WriteByte('\n')
	}
	_, err := io.WriteString(out, b.String())
	return err
}

func directionStatus(loading, failed, exhausted bool) string {
	switch {
	case loading:
		return "loading"
	case failed:
		return "error"
	case exhausted:
		return "exhausted"
	default:
		return "idle"
	}
}

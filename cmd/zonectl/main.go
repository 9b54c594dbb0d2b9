package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/user"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mikey-austin/zonectl/internal/adapters/clock"
	"github.com/mikey-austin/zonectl/internal/adapters/config"
	"github.com/mikey-austin/zonectl/internal/adapters/homeassistant"
	"github.com/mikey-austin/zonectl/internal/adapters/idgen"
	"github.com/mikey-austin/zonectl/internal/adapters/mqtt"
	"github.com/mikey-austin/zonectl/internal/adapters/output"
	"github.com/mikey-austin/zonectl/internal/adapters/selection"
	"github.com/mikey-austin/zonectl/internal/core"
	"github.com/mikey-austin/zonectl/internal/ports"
	"github.com/mikey-austin/zonectl/pkg/zones"
)

// executor runs one wire command, locally or through zoned.
type executor interface {
	Execute(ctx context.Context, cmd zones.CommandEnvelope) (core.CommandResult, error)
}

type app struct {
	service   core.Service
	exec      executor
	remote    *mqtt.Client
	selection ports.SelectionStore
	ids       ports.IDGen
	clock     ports.Clock
	printer   output.Printer
	identity  string
	player    string
	quiet     bool
	timeout   time.Duration
}

type rootFlags struct {
	configPath string
	player     string
	timeout    time.Duration
	quiet      bool
	jsonOut    bool
	verbose    bool
	remote     bool
	broker     string
	node       string
}

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		os.Exit(core.ExitCode(err))
	}
}

func newRootCommand() *cobra.Command {
	var flags rootFlags

	root := &cobra.Command{
		Use:          "zonectl",
		Short:        "Control Sonos zones through Home Assistant",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "config file path")
	root.PersistentFlags().StringVarP(&flags.player, "player", "p", "", "target player (id, name or alias)")
	root.PersistentFlags().DurationVarP(&flags.timeout, "timeout", "t", 5*time.Second, "command timeout")
	root.PersistentFlags().BoolVarP(&flags.quiet, "quiet", "q", false, "suppress command output")
	root.PersistentFlags().BoolVarP(&flags.jsonOut, "json", "j", false, "output json")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "verbose logging")
	root.PersistentFlags().BoolVar(&flags.remote, "remote", false, "send commands to zoned over MQTT")
	root.PersistentFlags().StringVarP(&flags.broker, "broker", "b", "", "MQTT broker URL for remote mode")
	root.PersistentFlags().StringVar(&flags.node, "node", "", "zoned node id for remote mode")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		a, err := newApp(flags)
		if err != nil {
			return err
		}
		cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, a))
		return nil
	}
	root.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if a := fromContext(cmd); a != nil && a.remote != nil {
			a.remote.Close()
		}
	}

	root.AddCommand(lsCommand())
	root.AddCommand(zonesCommand())
	root.AddCommand(statusCommand())
	root.AddCommand(selectCommand())
	root.AddCommand(playCommand())
	root.AddCommand(pauseCommand())
	root.AddCommand(toggleCommand())
	root.AddCommand(playStopCommand())
	root.AddCommand(stopCommand())
	root.AddCommand(nextCommand())
	root.AddCommand(prevCommand())
	root.AddCommand(seekCommand())
	root.AddCommand(jumpCommand())
	root.AddCommand(volumeCommand())
	root.AddCommand(muteCommand())
	root.AddCommand(shuffleCommand())
	root.AddCommand(repeatCommand())
	root.AddCommand(sourceCommand())
	root.AddCommand(soundModeCommand())
	root.AddCommand(playMediaCommand())
	root.AddCommand(joinCommand())
	root.AddCommand(unjoinCommand())
	root.AddCommand(serviceCommand())

	return root
}

func newApp(flags rootFlags) (*app, error) {
	var (
		cfg config.Config
		err error
	)
	if flags.configPath != "" {
		cfg, err = config.LoadFile(flags.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, core.WrapError(core.ExitUsage, "config", err)
	}

	store, err := selection.NewStore()
	if err != nil {
		return nil, err
	}

	log := zap.NewNop()
	if flags.verbose {
		if dev, err := zap.NewDevelopment(); err == nil {
			log = dev
		}
	}

	coreCfg := core.Config{
		Entities: cfg.Entities,
		Identity: defaultIdentity(cfg.Identity),
		Aliases:  cfg.Aliases,
		Defaults: core.Defaults{Player: cfg.Defaults.Player},
		Player: core.PlayerOptions{
			VolumeStep: cfg.Player.VolumeStep,
			IdleAfter:  cfg.Player.IdleAfter,
			JumpAmount: cfg.Player.JumpAmount,
			Artwork:    cfg.Player.Artwork,
		},
	}

	var printer output.Printer = output.HumanPrinter{}
	if flags.jsonOut {
		printer = output.JSONPrinter{}
	}

	a := &app{
		selection: store,
		ids:       idgen.Generator{},
		clock:     clock.Clock{},
		printer:   printer,
		identity:  coreCfg.Identity,
		player:    flags.player,
		quiet:     flags.quiet,
		timeout:   flags.timeout,
	}

	remoteCfg := cfg.Remote
	if flags.broker != "" {
		remoteCfg.Broker = flags.broker
	}
	if flags.node != "" {
		remoteCfg.Node = flags.node
	}
	if flags.remote || flags.broker != "" {
		if !remoteCfg.Enabled() {
			return nil, &core.CLIError{Code: core.ExitUsage, Msg: "remote mode needs a broker (set --broker or [remote] broker)"}
		}
		return a, a.connectRemote(remoteCfg)
	}

	timeout, err := cfg.Hass.TimeoutDuration()
	if err != nil {
		return nil, core.WrapError(core.ExitUsage, "hass timeout", err)
	}
	ttl, err := cfg.Hass.CacheTTLDuration()
	if err != nil {
		return nil, core.WrapError(core.ExitUsage, "hass cache_ttl", err)
	}
	ha, err := homeassistant.NewClient(homeassistant.Options{
		URL:      cfg.Hass.URL,
		Token:    cfg.Hass.Token,
		Timeout:  timeout,
		CacheTTL: ttl,
	})
	if err != nil {
		if errors.Is(err, homeassistant.ErrNotConfigured) {
			return nil, &core.CLIError{Code: core.ExitUsage, Msg: fmt.Sprintf("home assistant url and token are required (config or %s/%s)", config.EnvHassURL, config.EnvHassToken)}
		}
		return nil, err
	}

	a.service = core.Service{
		States:    ha,
		Commander: core.Commander{Dispatcher: ha, Timeout: timeout, Log: log},
		Resolver:  core.Resolver{Config: coreCfg, Selection: store},
		Clock:     a.clock,
		Config:    coreCfg,
	}
	a.exec = a.service
	return a, nil
}

func (a *app) connectRemote(cfg config.Remote) error {
	timeout, err := cfg.TimeoutDuration()
	if err != nil {
		return core.WrapError(core.ExitUsage, "remote timeout", err)
	}
	node := cfg.Node
	if node == "" {
		node = "zoned"
	}
	client, err := mqtt.NewClient(mqtt.Options{
		BrokerURL: cfg.Broker,
		ClientID:  fmt.Sprintf("zonectl-%s", a.ids.NewID()),
		Username:  cfg.Username,
		Password:  cfg.Password,
		TLSCA:     cfg.TLSCA,
		TLSCert:   cfg.TLSCert,
		TLSKey:    cfg.TLSKey,
		TopicBase: cfg.TopicBase,
		Timeout:   timeout,
	})
	if err != nil {
		return core.WrapError(core.ExitUnavailable, "connect broker", err)
	}
	a.remote = client
	a.exec = remoteExecutor{client: client, node: node}
	return nil
}

type appKey struct{}

func fromContext(cmd *cobra.Command) *app {
	val := cmd.Context().Value(appKey{})
	if val == nil {
		return nil
	}
	return val.(*app)
}

func (a *app) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), a.timeout)
}

// selector picks the target from a positional argument, then --player.
// In remote mode the stored selection fills in, since zoned cannot see it.
func (a *app) selector(args []string) string {
	if len(args) > 0 && args[0] != "" {
		return args[0]
	}
	if a.player != "" || a.remote == nil {
		return a.player
	}
	if id, ok, err := a.selection.Selected(); err == nil && ok {
		return id
	}
	return ""
}

// send wraps body in a command envelope and runs it.
func (a *app) send(cmdType string, body any) error {
	cmd, err := zones.NewCommand(cmdType, body)
	if err != nil {
		return core.WrapError(core.ExitUsage, "build command", err)
	}
	cmd.ID = a.ids.NewID()
	cmd.TS = a.clock.Now().Unix()
	cmd.From = a.identity

	ctx, cancel := a.context()
	defer cancel()
	result, err := a.exec.Execute(ctx, cmd)
	if err != nil {
		return err
	}
	if a.quiet {
		return nil
	}
	return a.printer.Print(result)
}

func (a *app) localOnly(what string) error {
	if a.remote != nil {
		return &core.CLIError{Code: core.ExitUsage, Msg: fmt.Sprintf("%s needs direct Home Assistant access", what)}
	}
	return nil
}

// remotePublisher is the part of the MQTT client remote mode needs.
type remotePublisher interface {
	PublishCommand(ctx context.Context, nodeID string, cmd zones.CommandEnvelope) (zones.ReplyEnvelope, error)
}

type remoteExecutor struct {
	client remotePublisher
	node   string
}

func (r remoteExecutor) Execute(ctx context.Context, cmd zones.CommandEnvelope) (core.CommandResult, error) {
	reply, err := r.client.PublishCommand(ctx, r.node, cmd)
	if err != nil {
		return core.CommandResult{}, core.WrapError(core.ExitUnavailable, fmt.Sprintf("node %s", r.node), err)
	}
	if !reply.OK {
		if reply.Err == nil {
			return core.CommandResult{}, &core.CLIError{Code: core.ExitRuntime, Msg: "command failed"}
		}
		return core.CommandResult{}, core.ErrorForReplyCode(reply.Err.Code, reply.Err.Message)
	}
	var result core.CommandResult
	if len(reply.Body) > 0 {
		if err := json.Unmarshal(reply.Body, &result); err != nil {
			return core.CommandResult{}, core.WrapError(core.ExitRuntime, "decode reply", err)
		}
	}
	return result, nil
}

func defaultIdentity(cfgVal string) string {
	if cfgVal != "" {
		return cfgVal
	}
	usr, _ := user.Current()
	host, _ := os.Hostname()
	if usr != nil && host != "" {
		return fmt.Sprintf("%s@%s", usr.Username, host)
	}
	if host != "" {
		return host
	}
	return "zonectl"
}

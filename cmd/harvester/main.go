package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/CarrieW-BorderX/tiktok-scraper/internal/media"
	"github.com/CarrieW-BorderX/tiktok-scraper/internal/report"
	"github.com/CarrieW-BorderX/tiktok-scraper/pkg/config"
)

var Version = "dev"

// Globals are flags shared by every command.
type Globals struct {
	Config   string `help:"Path to config.yaml. Searched in ., config/ and ../../config when empty." env:"CONFIG_PATH"`
	LogLevel string `help:"Override log.level (debug, info, warn, error)." name:"log-level"`
}

type CLI struct {
	Globals

	Batch      BatchCmd      `cmd:"" default:"1" help:"Download videos for every account of the manifest"`
	Single     SingleCmd     `cmd:"" help:"Download videos for one hashtag or user id"`
	ShowConfig ShowConfigCmd `cmd:"" name:"show-config" help:"Print the effective configuration"`
}

type BatchCmd struct {
	Manifest    string `help:"Manifest of label,account rows. Defaults to batch.manifest." short:"m"`
	FailOnError bool   `help:"Exit non-zero when any manifest row failed." name:"fail-on-error"`
}

type SingleCmd struct {
	Kind  string `help:"Search kind: hashtag or userid. Defaults to discovery.search_kind."`
	Query string `help:"Hashtag or user id to harvest." required:"" short:"q"`
	Max   int    `help:"Maximum identifiers to discover. Defaults to discovery.max_identifiers."`
	Label string `help:"Folder label. Defaults to the query."`
}

type ShowConfigCmd struct{}

func (cmd *BatchCmd) Run(ctx context.Context, g *Globals) error {
	a, err := loadApp(g)
	if err != nil {
		return err
	}
	defer a.close()

	path := cmd.Manifest
	if path == "" {
		path = a.cfg.Batch.Manifest
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf("Harvester %s", Version)))
	fmt.Println(processingStyle.Render(fmt.Sprintf("Processing manifest %s (%s)", path, a.cfg.SearchKind())))

	o, err := a.orchestrator(ctx, a.cfg.SearchKind(), a.cfg.Discovery.MaxIdentifiers)
	if err != nil {
		return err
	}
	rep, runErr := o.RunManifest(ctx, path)
	fmt.Println(renderSummary(rep, a.cfg.Batch.ErrorLog))
	return batchExit(rep, runErr, cmd.FailOnError)
}

// batchExit reports row failures as the command error when failOnError is set.
// A fatal run error always wins.
func batchExit(rep *report.RunReport, runErr error, failOnError bool) error {
	if runErr != nil || !failOnError {
		return runErr
	}
	if err := rep.Err(); err != nil {
		return fmt.Errorf("%d manifest rows failed: %w", len(rep.RowFailures), err)
	}
	return nil
}

func (cmd *SingleCmd) Run(ctx context.Context, g *Globals) error {
	a, err := loadApp(g)
	if err != nil {
		return err
	}
	defer a.close()

	kind := a.cfg.SearchKind()
	if cmd.Kind != "" {
		if kind, err = media.ParseKind(cmd.Kind); err != nil {
			return err
		}
	}
	max := a.cfg.Discovery.MaxIdentifiers
	if cmd.Max > 0 {
		max = cmd.Max
	}
	label := cmd.Label
	if label == "" {
		label = cmd.Query
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf("Harvester %s", Version)))
	fmt.Println(processingStyle.Render(fmt.Sprintf("Harvesting %s %q (max %d)", kind, cmd.Query, max)))

	o, err := a.orchestrator(ctx, kind, max)
	if err != nil {
		return err
	}
	rep, runErr := o.RunAccount(ctx, label, cmd.Query)
	fmt.Println(renderSummary(rep, ""))
	return runErr
}

func (cmd *ShowConfigCmd) Run(g *Globals) error {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return err
	}
	return cfg.Dump(os.Stdout)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("harvester"),
		kong.Description("Discover TikTok videos and download them through a Cobalt resolver."),
		kong.UsageOnError(),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)
	err := kctx.Run(&cli.Globals)
	kctx.FatalIfErrorf(err)
}

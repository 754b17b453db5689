package dispatch

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"http-bridge/bridge/dispatch/application"
	"http-bridge/bridge/dispatch/domain"
	"http-bridge/bridge/dispatch/infra"
)

type Dispatcher = application.Dispatcher
type Request = domain.Request
type Token = domain.Token

const NoSlot = domain.NoSlot

type Options struct {
	// Capacity é o tamanho da tabela de slots. 0 = domain.DefaultCapacity (128).
	Capacity     int
	Transport    domain.Transport
	Callbacks    domain.Callbacks
	Cache        domain.ResponseCache
	Connectivity domain.ConnectivityProbe
	Stats        domain.StatsStore
	Logger       *slog.Logger
}

// New monta um Dispatcher com as implementações de infra.
// Transport nil usa infra.NewHTTPTransport(); Cache nil usa infra.FileCache;
// Connectivity nil usa infra.InterfaceProbe.
func New(opts Options) *Dispatcher {
	if opts.Transport == nil {
		opts.Transport = infra.NewHTTPTransport()
	}
	if opts.Cache == nil {
		opts.Cache = infra.FileCache{}
	}
	if opts.Connectivity == nil {
		opts.Connectivity = infra.InterfaceProbe{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Dispatcher{
		Slots:        infra.NewSlotTable(opts.Capacity),
		Headers:      infra.NewHeaderTable(),
		Background:   infra.NewLooper(),
		Main:         infra.NewMainQueue(),
		Transport:    opts.Transport,
		Callbacks:    opts.Callbacks,
		Cache:        opts.Cache,
		Connectivity: opts.Connectivity,
		Stats:        opts.Stats,
		Logger:       opts.Logger,
	}
}

// Run roda a goroutine de dispatch, a main queue e o writer de estatísticas
// até ctx encerrar, e então cancela as transferências em andamento.
//
// Hosts com loop próprio (que chamam d.Main.Update a cada quadro) devem rodar
// apenas d.Background.Run e d.RunStats.
func Run(ctx context.Context, d *Dispatcher) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.Background.Run(ctx) })
	g.Go(func() error { return d.Main.Run(ctx) })
	g.Go(func() error { return d.RunStats(ctx) })
	err := g.Wait()
	d.Stop()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

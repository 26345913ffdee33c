// Command blindsim reconciles two blind move-list files offline.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/park285/Cheese-BlindChess-bot/internal/adapter/blindpresenter"
	"github.com/park285/Cheese-BlindChess-bot/internal/movelist"
	"github.com/park285/Cheese-BlindChess-bot/internal/msgcat"
	"github.com/park285/Cheese-BlindChess-bot/internal/obslog"
	"github.com/park285/Cheese-BlindChess-bot/internal/reconcile"
	"github.com/park285/Cheese-BlindChess-bot/internal/render"
	"github.com/park285/Cheese-BlindChess-bot/internal/rules"
)

type options struct {
	white, black string
	policy       string
	lang         string
	png          string
	size         int
	asJSON       bool
}

func main() {
	var o options
	flag.StringVar(&o.white, "white", "blind-white-moves.txt", "white move-list file")
	flag.StringVar(&o.black, "black", "blind-black-moves.txt", "black move-list file")
	flag.StringVar(&o.policy, "policy", string(reconcile.DefaultPolicy), "strict | seek-next")
	flag.StringVar(&o.lang, "lang", "en", "description language (en | ko)")
	flag.StringVar(&o.png, "png", "", "write the final position to this PNG file")
	flag.IntVar(&o.size, "size", 480, "board size in pixels for -png")
	flag.BoolVar(&o.asJSON, "json", false, "print the trace and summary as JSON")
	flag.Parse()

	opts := obslog.OptionsFromEnv()
	opts.ToFile = false
	opts.Stderr = true
	if os.Getenv("LOG_LEVEL") == "" {
		opts.Level = "warn"
	}
	logger, err := obslog.Build(opts)
	if err != nil {
		logger = zap.NewNop()
	}
	defer func() { _ = logger.Sync() }()

	if err := run(context.Background(), o, os.Stdout, logger); err != nil {
		fmt.Fprintln(os.Stderr, "blindsim:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, o options, out io.Writer, logger *zap.Logger) error {
	policy, err := reconcile.ParsePolicy(o.policy)
	if err != nil {
		return err
	}
	white, err := movelist.ReadFile(o.white)
	if err != nil {
		return fmt.Errorf("white list: %w", err)
	}
	black, err := movelist.ReadFile(o.black)
	if err != nil {
		return fmt.Errorf("black list: %w", err)
	}
	cat, err := msgcat.New(o.lang, "")
	if err != nil {
		return err
	}

	sim := reconcile.New(policy,
		reconcile.WithDescriber(msgcat.NewDescriber(cat)),
		reconcile.WithLogger(logger),
	)
	trace := sim.Run(white, black)

	if o.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		err = enc.Encode(struct {
			Trace   *reconcile.Trace  `json:"trace"`
			Summary reconcile.Summary `json:"summary"`
		}{trace, trace.Summary()})
	} else {
		err = printTrace(out, cat, trace)
	}
	if err != nil {
		return err
	}

	if o.png != "" {
		return writeBoard(ctx, o, trace)
	}
	return nil
}

func printTrace(out io.Writer, cat *msgcat.Catalog, trace *reconcile.Trace) error {
	f := blindpresenter.NewFormatter(cat, nil)
	if _, err := fmt.Fprintln(out, cat.Text("sim.header", map[string]any{"Policy": f.Policy(trace.Policy)})); err != nil {
		return err
	}
	for _, st := range trace.Steps {
		line := cat.Text("sim.step", map[string]any{
			"Index":       st.Index,
			"Description": st.Description,
			"White":       st.WhiteScore,
			"Black":       st.BlackScore,
		})
		if _, err := fmt.Fprintln(out, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(out, "\n%s\n", f.Summary(trace))
	return err
}

func writeBoard(ctx context.Context, o options, trace *reconcile.Trace) error {
	pos, err := rules.FromFEN(trace.Final().FEN)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	png, err := render.New(o.size).PNG(ctx, pos.Board(), render.Options{
		Header: fmt.Sprintf("blind %s  %d steps", trace.Policy, trace.Len()),
		Footer: "result: " + trace.Winner(),
	})
	if err != nil {
		return err
	}
	return os.WriteFile(o.png, png, 0o644)
}

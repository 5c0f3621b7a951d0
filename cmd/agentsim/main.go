package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"

	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/control"
	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/types"
	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/pkg/realtime"
)

type App struct {
	agent  *realtime.AgentSession
	viewer *realtime.ViewerSession
	caller *realtime.CallerSession
	logger zerolog.Logger
}

func main() {
	var (
		serverURL   = flag.String("server-url", "http://localhost:8000", "Call-center server URL")
		token       = flag.String("token", "", "Bearer token for servers with auth enabled")
		controlPort = flag.String("control-port", "8081", "Control API port")
		userID      = flag.String("user-id", "agent_1", "Agent user id")
		username    = flag.String("username", "agent01", "Agent username")
		fullName    = flag.String("full-name", "Nguyễn Văn Agent", "Agent display name")
		viewerID    = flag.String("viewer-id", realtime.DefaultViewerID, "CRM viewer id")
		noViewer    = flag.Bool("no-viewer", false, "Do not start the CRM viewer session")
		withCaller  = flag.Bool("caller", false, "Start a customer session for /customer/call")
		autoAnswer  = flag.Bool("auto-answer", false, "Answer every call offered to the agent")
		logLevel    = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	)
	flag.Parse()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	logger := log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().
		Str("service", "agentsim").
		Logger()

	logger.Info().Str("server_url", *serverURL).Msg("starting AgentSim")

	opts := realtime.Options{ServerURL: *serverURL, Token: *token, Logger: logger}
	app := &App{logger: logger}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := app.startAgent(ctx, opts, realtime.Identity{
		UserID:     *userID,
		Username:   *username,
		FullName:   *fullName,
		Department: "Call Center",
	}, *autoAnswer); err != nil {
		logger.Fatal().Err(err).Msg("agent session failed")
	}
	if !*noViewer {
		if err := app.startViewer(ctx, opts, *viewerID); err != nil {
			logger.Fatal().Err(err).Msg("viewer session failed")
		}
	}
	if *withCaller {
		if err := app.startCaller(ctx, opts); err != nil {
			logger.Fatal().Err(err).Msg("caller session failed")
		}
	}

	api := app.controlAPI()
	go func() {
		addr := fmt.Sprintf(":%s", *controlPort)
		if err := api.Start(ctx, addr); err != nil {
			logger.Error().Err(err).Msg("control API stopped")
		}
	}()

	logger.Info().
		Str("control_api", fmt.Sprintf("http://localhost:%s", *controlPort)).
		Msg("AgentSim ready")
	printUsage(*controlPort)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("shutting down AgentSim")
	cancel()
	app.shutdown()
}

func (app *App) startAgent(ctx context.Context, opts realtime.Options, id realtime.Identity, autoAnswer bool) error {
	app.agent = realtime.NewAgentSession(opts)

	app.agent.On(types.EventAgentLoginSuccess, func(*types.Message) {
		app.logger.Info().Str("agent_id", id.UserID).Msg("agent logged in")
	})
	app.agent.On(types.EventCallEnded, func(msg *types.Message) {
		var ended types.CallEnded
		if msg.Decode(&ended) == nil {
			app.logger.Info().
				Str("call_id", ended.CallID).
				Str("duration", realtime.FormatCallDuration(ended.Duration)).
				Str("reason", ended.EndReason).
				Msg("agent call ended")
		}
	})
	if autoAnswer {
		app.agent.On(types.EventIncomingCall, func(msg *types.Message) {
			var call types.IncomingCall
			if msg.Decode(&call) != nil {
				return
			}
			if err := app.agent.AnswerCall(call.CallID); err != nil {
				app.logger.Warn().Err(err).Str("call_id", call.CallID).Msg("auto-answer failed")
			}
		})
	}

	go app.logCallEvents(ctx, "agent", app.agent.CallEvents())

	if err := app.agent.Connect(ctx, id); err != nil {
		return err
	}
	return app.agent.Login()
}

func (app *App) startViewer(ctx context.Context, opts realtime.Options, viewerID string) error {
	app.viewer = realtime.NewViewerSession(opts, viewerID, &types.ClientInfo{
		Platform:  "agentsim",
		Version:   "1.0",
		UserAgent: "agentsim/1.0",
	})
	app.viewer.On(types.EventIncomingCallToCRM, func(msg *types.Message) {
		var call types.IncomingCall
		if msg.Decode(&call) == nil {
			app.logger.Info().
				Str("call_id", call.CallID).
				Str("caller", call.CallerNumber).
				Str("status", realtime.CallStatusText(string(call.Status))).
				Msg("call offered to viewer")
		}
	})
	go app.logConnection(ctx, "viewer", app.viewer.ConnectionEvents())
	return app.viewer.Connect(ctx)
}

func (app *App) startCaller(ctx context.Context, opts realtime.Options) error {
	app.caller = realtime.NewCallerSession(opts)
	go app.logCallEvents(ctx, "caller", app.caller.CallEvents())
	return app.caller.Connect(ctx)
}

// controlAPI hands only the started sessions to the control API
func (app *App) controlAPI() *control.API {
	var (
		agent  control.Agent
		viewer control.Viewer
		caller control.Caller
	)
	if app.agent != nil {
		agent = app.agent
	}
	if app.viewer != nil {
		viewer = app.viewer
	}
	if app.caller != nil {
		caller = app.caller
	}
	return control.NewAPI(agent, viewer, caller, app.logger)
}

func (app *App) logCallEvents(ctx context.Context, who string, events <-chan realtime.CallEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			app.logger.Debug().Str("session", who).Str("event", ev.Type).Str("call_id", ev.CallID).Msg("call event")
		}
	}
}

func (app *App) logConnection(ctx context.Context, who string, events <-chan realtime.ConnectionEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			app.logger.Info().Str("session", who).Str("state", ev.Type).Int("attempt", ev.Attempt).Msg("connection state")
		}
	}
}

func (app *App) shutdown() {
	if app.agent != nil {
		if err := app.agent.Logout(); err != nil {
			app.logger.Warn().Err(err).Msg("agent logout failed")
		}
		app.agent.Cleanup()
	}
	if app.viewer != nil {
		app.viewer.Cleanup()
	}
	if app.caller != nil {
		app.caller.Cleanup()
	}
}

func printUsage(port string) {
	fmt.Println()
	fmt.Println("╔════════════════════════════════════════════════════════════════╗")
	fmt.Println("║                    AgentSim Control API                        ║")
	fmt.Println("╚════════════════════════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Println("Available endpoints:")
	fmt.Printf("  GET  http://localhost:%s/health          - Health check\n", port)
	fmt.Printf("  GET  http://localhost:%s/state           - Session state\n", port)
	fmt.Printf("  POST http://localhost:%s/agent/status    - Change agent status\n", port)
	fmt.Printf("  POST http://localhost:%s/agent/answer    - Answer the offered call\n", port)
	fmt.Printf("  POST http://localhost:%s/agent/end       - Hang up the current call\n", port)
	fmt.Printf("  POST http://localhost:%s/agent/simulate  - Simulate an incoming call\n", port)
	fmt.Printf("  POST http://localhost:%s/viewer/answer   - Answer from the CRM viewer\n", port)
	fmt.Printf("  POST http://localhost:%s/customer/call   - Place a customer call\n", port)
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Printf("  curl http://localhost:%s/state\n", port)
	fmt.Printf("  curl -X POST http://localhost:%s/agent/status -d '{\"status\":\"away\"}'\n", port)
	fmt.Printf("  curl -X POST http://localhost:%s/customer/call -d '{\"callerNumber\":\"+84901234567\"}'\n", port)
	fmt.Println()
}

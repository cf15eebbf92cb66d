// Command roomgate runs the multiplayer room server and its companion tools.
//
// Subcommands:
//  1. "serve" (default) runs the HTTP server exposing the REST API, the
//     WebSocket endpoint and an /mcp HTTP endpoint
//  2. "mcp" runs an MCP stdio server, starting an internal HTTP API when no
//     server is reachable
//  3. "bot" connects scripted players to a server
//  4. "modes" prints the game-mode catalog; "modes validate" and "modes add"
//     check and extend the mode directory
//
// Flags can also be set through environment variables or a .env file.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"
	"golang.org/x/sync/errgroup"

	"github.com/wricardo/roomgate/api"
	"github.com/wricardo/roomgate/game/config"
	"github.com/wricardo/roomgate/game/registry"
	"github.com/wricardo/roomgate/game/service"
	"github.com/wricardo/roomgate/transport/client"
	"github.com/wricardo/roomgate/transport/mcp"
	"github.com/wricardo/roomgate/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "roomgate"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: error loading .env file: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", AppName, err)
		os.Exit(1)
	}
}

func debugFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:    "debug",
		Usage:   "Enable debug logging",
		Sources: cli.EnvVars("DEBUG"),
	}
}

func modesDirFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "modes-dir",
		Usage:   "Directory of extra game-mode JSON files",
		Sources: cli.EnvVars("MODES_DIR"),
	}
}

func serveFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:    "port",
			Value:   8080,
			Usage:   "HTTP server port",
			Sources: cli.EnvVars("PORT"),
		},
		&cli.StringFlag{
			Name:    "host",
			Value:   "localhost",
			Usage:   "HTTP server host",
			Sources: cli.EnvVars("HOST"),
		},
		modesDirFlag(),
		debugFlag(),
		&cli.BoolFlag{
			Name:    "ngrok",
			Usage:   "Expose the server through an ngrok tunnel",
			Sources: cli.EnvVars("NGROK_ENABLED"),
		},
		&cli.StringFlag{
			Name:    "ngrok-authtoken",
			Usage:   "Ngrok auth token",
			Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN"),
		},
		&cli.StringFlag{
			Name:    "ngrok-domain",
			Usage:   "Custom ngrok domain (optional)",
			Sources: cli.EnvVars("NGROK_DOMAIN"),
		},
	}
}

// newApp builds the command tree
func newApp() *cli.Command {
	return &cli.Command{
		Name:    AppName,
		Usage:   "Real-time multiplayer game rooms over WebSocket",
		Version: Version,
		Flags:   serveFlags(),
		Action:  serveAction,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP server with REST API, WebSocket and MCP endpoint",
				Flags:  serveFlags(),
				Action: serveAction,
			},
			{
				Name:  "mcp",
				Usage: "Run an MCP stdio server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "url",
						Value:   "http://localhost:8080",
						Usage:   "Base URL of a running roomgate server",
						Sources: cli.EnvVars("ROOMGATE_URL"),
					},
					modesDirFlag(),
					debugFlag(),
				},
				Action: mcpAction,
			},
			{
				Name:  "bot",
				Usage: "Connect scripted players to a server",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "url", Value: "ws://localhost:8080/ws", Usage: "WebSocket endpoint", Sources: cli.EnvVars("ROOMGATE_WS_URL")},
					&cli.StringFlag{Name: "room", Usage: "Room code to join; a new room is created when empty"},
					&cli.StringFlag{Name: "name", Value: "bot", Usage: "Name prefix for the bots"},
					&cli.StringFlag{Name: "mode", Value: "free-roam", Usage: "Game mode for a created room"},
					&cli.IntFlag{Name: "count", Value: 1, Usage: "Number of bots"},
					&cli.IntFlag{Name: "moves", Value: 20, Usage: "Position updates per bot, 0 for unlimited"},
					&cli.DurationFlag{Name: "interval", Value: 500 * time.Millisecond, Usage: "Delay between moves"},
					&cli.BoolFlag{Name: "chat", Usage: "Send chat messages while moving"},
					debugFlag(),
				},
				Action: botAction,
			},
			{
				Name:   "modes",
				Usage:  "List available game modes",
				Flags:  []cli.Flag{modesDirFlag()},
				Action: modesAction,
				Commands: []*cli.Command{
					{
						Name:   "validate",
						Usage:  "Check the mode files in --modes-dir",
						Flags:  []cli.Flag{modesDirFlag()},
						Action: validateModesAction,
					},
					{
						Name:  "add",
						Usage: "Write a mode file to --modes-dir",
						Flags: []cli.Flag{
							modesDirFlag(),
							&cli.StringFlag{Name: "id", Usage: "Mode id (lowercase letters, digits, dashes)", Required: true},
							&cli.StringFlag{Name: "name", Usage: "Display name", Required: true},
							&cli.StringFlag{Name: "description", Usage: "Short description"},
							&cli.IntFlag{Name: "max-players", Usage: "Player cap for rooms in this mode", Required: true},
						},
						Action: addModeAction,
					},
				},
			},
		},
	}
}

// newLogger returns a tint console logger
func newLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(w, &tint.Options{Level: level, AddSource: debug}))
}

// services bundles the wired server components
type services struct {
	rooms *registry.Registry
	modes *config.Manager
	hub   *websocket.Hub
	coord *service.Coordinator
}

// initializeServices wires the mode catalog, registry, hub and coordinator.
// The hub is not started.
func initializeServices(modesDir string, logger *slog.Logger) (*services, error) {
	modes, err := config.NewManager(modesDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create mode catalog: %w", err)
	}

	rooms := registry.New(logger)
	hub := websocket.NewHub(logger)
	coord := service.NewCoordinator(rooms, hub, modes, logger)
	hub.SetDispatcher(coord)
	coord.OnInit(context.Background())

	return &services{rooms: rooms, modes: modes, hub: hub, coord: coord}, nil
}

// newHandler combines the API server with the /mcp endpoint
func newHandler(svc *services, mcpClient *mcp.Client, logger *slog.Logger) http.Handler {
	apiServer := api.NewServer(svc.coord, svc.hub, logger)

	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", apiServer)

	if mcpClient != nil {
		mainRouter.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				http.Error(w, "Failed to read request", http.StatusBadRequest)
				return
			}
			defer r.Body.Close()

			response := mcpClient.GetMCPServer().HandleMessage(r.Context(), body)

			w.Header().Set("Content-Type", "application/json")
			if err := json.NewEncoder(w).Encode(response); err != nil {
				logger.Error("failed to write mcp response", "error", err)
			}
		})
	}

	return mainRouter
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	logger := newLogger(os.Stdout, cmd.Bool("debug"))
	slog.SetDefault(logger)

	svc, err := initializeServices(cmd.String("modes-dir"), logger)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", cmd.String("host"), cmd.Int("port"))
	logger.Info("starting", "app", AppName, "version", Version, "addr", addr)

	var tunnel *ngrokOptions
	if cmd.Bool("ngrok") {
		tunnel = &ngrokOptions{
			authToken: cmd.String("ngrok-authtoken"),
			domain:    cmd.String("ngrok-domain"),
		}
	}
	return runServer(ctx, svc, addr, tunnel, logger)
}

type ngrokOptions struct {
	authToken string
	domain    string
}

// runServer serves HTTP until ctx is cancelled, then shuts down gracefully
func runServer(ctx context.Context, svc *services, addr string, tunnel *ngrokOptions, logger *slog.Logger) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return serve(ctx, svc, listener, tunnel, logger)
}

func serve(ctx context.Context, svc *services, listener net.Listener, tunnel *ngrokOptions, logger *slog.Logger) error {
	addr := listener.Addr().String()
	handler := newHandler(svc, mcp.NewClient("http://"+addr), logger)

	httpServer := &http.Server{
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		svc.hub.Run(ctx)
		return nil
	})

	eg.Go(func() error {
		logger.Info("HTTP server listening", "addr", addr)
		logger.Info("endpoints",
			"rest", "http://"+addr+"/api",
			"websocket", "ws://"+addr+"/ws",
			"mcp", "http://"+addr+"/mcp")

		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})

	if tunnel != nil {
		eg.Go(func() error {
			return serveNgrok(ctx, httpServer, tunnel, logger)
		})
	}

	eg.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "error", err)
		}
		return nil
	})

	err := eg.Wait()
	logger.Info("server stopped")
	return err
}

// serveNgrok exposes the server through an ngrok tunnel. A missing token or a
// failed tunnel is logged and leaves the local server running.
func serveNgrok(ctx context.Context, httpServer *http.Server, opts *ngrokOptions, logger *slog.Logger) error {
	if opts.authToken == "" {
		logger.Warn("ngrok enabled but no auth token provided (use --ngrok-authtoken or NGROK_AUTHTOKEN)")
		return nil
	}

	endpoint := ngrokConfig.HTTPEndpoint()
	if opts.domain != "" {
		endpoint = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(opts.domain))
		logger.Info("using custom ngrok domain", "domain", opts.domain)
	}

	tun, err := ngrok.Listen(ctx, endpoint, ngrok.WithAuthtoken(opts.authToken))
	if err != nil {
		logger.Error("failed to start ngrok tunnel", "error", err)
		return nil
	}

	logger.Info("ngrok tunnel established", "url", tun.URL())

	// Shutdown on the shared server closes this listener too.
	if err := httpServer.Serve(tun); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("ngrok server error", "error", err)
	}
	logger.Info("ngrok tunnel closed")
	return nil
}

// mcpAction runs an MCP stdio server. It reuses an external server when one
// answers at --url; otherwise it starts an internal one on a loopback port.
func mcpAction(ctx context.Context, cmd *cli.Command) error {
	// stdout carries the protocol
	logger := newLogger(os.Stderr, cmd.Bool("debug"))
	slog.SetDefault(logger)

	baseURL := cmd.String("url")
	if !serverReachable(ctx, baseURL) {
		logger.Info("no external API server found, starting internal HTTP server", "url", baseURL)

		svc, err := initializeServices(cmd.String("modes-dir"), logger)
		if err != nil {
			return err
		}
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}
		baseURL = "http://" + listener.Addr().String()

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		done := make(chan error, 1)
		go func() { done <- serve(ctx, svc, listener, nil, logger) }()
		defer func() {
			cancel()
			<-done
		}()
	}

	logger.Info("MCP stdio server ready", "api", baseURL)
	return server.ServeStdio(mcp.NewClient(baseURL).GetMCPServer())
}

func serverReachable(ctx context.Context, baseURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/healthz", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func botAction(ctx context.Context, cmd *cli.Command) error {
	logger := newLogger(os.Stdout, cmd.Bool("debug"))

	roomID, err := client.RunSwarm(ctx, client.SwarmConfig{
		BotConfig: client.BotConfig{
			URL:      cmd.String("url"),
			RoomID:   cmd.String("room"),
			Name:     cmd.String("name"),
			Moves:    cmd.Int("moves"),
			Interval: cmd.Duration("interval"),
			Chat:     cmd.Bool("chat"),
		},
		Count:    cmd.Int("count"),
		GameMode: cmd.String("mode"),
	}, logger)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("bots finished", "room", roomID)
	return nil
}

func modesAction(ctx context.Context, cmd *cli.Command) error {
	modes, err := config.NewManager(cmd.String("modes-dir"))
	if err != nil {
		return err
	}
	return printModes(os.Stdout, modes.List())
}

func validateModesAction(ctx context.Context, cmd *cli.Command) error {
	modes, err := config.NewManager(cmd.String("modes-dir"))
	if err != nil {
		return err
	}
	problems, err := modes.Validate()
	if err != nil {
		return err
	}
	return reportProblems(os.Stdout, problems)
}

func addModeAction(ctx context.Context, cmd *cli.Command) error {
	modes, err := config.NewManager(cmd.String("modes-dir"))
	if err != nil {
		return err
	}
	mode := &service.ModeInfo{
		ID:          cmd.String("id"),
		Name:        cmd.String("name"),
		Description: cmd.String("description"),
		MaxPlayers:  cmd.Int("max-players"),
	}
	if err := modes.SaveMode(mode); err != nil {
		return err
	}
	fmt.Printf("Saved mode %s\n", mode.ID)
	return nil
}

// reportProblems prints one line per invalid file and fails when any exist
func reportProblems(w io.Writer, problems map[string]error) error {
	if len(problems) == 0 {
		fmt.Fprintln(w, "All mode files are valid")
		return nil
	}
	names := make([]string, 0, len(problems))
	for name := range problems {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "%s: %v\n", name, problems[name])
	}
	return fmt.Errorf("%d invalid mode file(s)", len(problems))
}

func printModes(w io.Writer, modes []*service.ModeInfo) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tMAX PLAYERS\tDESCRIPTION")
	for _, m := range modes {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", m.ID, m.Name, m.MaxPlayers, m.Description)
	}
	return tw.Flush()
}

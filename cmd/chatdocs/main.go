// Command chatdocs is a terminal client for chatting with an uploaded PDF.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/Raj-Randive/chatdocs/internal/config"
	"github.com/Raj-Randive/chatdocs/internal/tui"
	"github.com/Raj-Randive/chatdocs/pkg/client"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "", "path to the client config (default ~/.config/chatdocs/config.yaml)")
	fileID := flag.String("file", "", "id of the file to chat about")
	server := flag.String("server", "", "API base URL, overrides the config")
	token := flag.String("token", "", "bearer token, overrides the config")
	list := flag.Bool("list", false, "list your files and exit")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "chatdocs: %v\n", err)
		os.Exit(1)
	}
	if *server != "" {
		cfg.ServerURL = *server
	}
	if *token != "" {
		cfg.Token = *token
	}

	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	api := client.New(cfg.ServerURL, cfg.BearerToken(), timeout)

	if err := syncAccount(api, timeout); err != nil {
		if client.IsStatus(err, http.StatusUnauthorized) {
			fmt.Fprintln(os.Stderr, "chatdocs: the server rejected your token; sign in again and update the config")
		} else {
			fmt.Fprintf(os.Stderr, "chatdocs: %v\n", err)
		}
		os.Exit(1)
	}

	if *list {
		if err := listFiles(api, timeout); err != nil {
			fmt.Fprintf(os.Stderr, "chatdocs: %v\n", err)
			os.Exit(1)
		}
		return
	}
	if *fileID == "" {
		fmt.Fprintln(os.Stderr, "chatdocs: -file is required (use -list to see your files)")
		os.Exit(2)
	}

	p := tea.NewProgram(tui.New(api, *fileID, "chatdocs · "+*fileID, cfg.PageSize, timeout), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "chatdocs: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.CLIConfig, error) {
	if path != "" {
		return config.LoadCLI(path)
	}
	cfg, _, err := config.LoadDefaultCLI()
	return cfg, err
}

// syncAccount makes sure the server knows the signed-in user before any
// file or message call.
func syncAccount(api *client.Client, timeout time.Duration) error {
	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		// Room for every attempt and the backoff between them.
		ctx, cancel = context.WithTimeout(ctx, 3*timeout+5*time.Second)
		defer cancel()
	}
	_, err := api.SyncUser(ctx)
	return err
}

func listFiles(api *client.Client, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	files, err := api.ListFiles(ctx)
	if err != nil {
		return err
	}
	for _, f := range files {
		pages := "-"
		if f.PageCount != nil {
			pages = fmt.Sprint(*f.PageCount)
		}
		fmt.Printf("%s  %-8s %5s  %s\n", f.ID, f.UploadStatus, pages, f.Name)
	}
	return nil
}

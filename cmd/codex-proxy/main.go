package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/exec"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yuvalraviv1/codex-proxy/backend"
	"github.com/yuvalraviv1/codex-proxy/config"
	"github.com/yuvalraviv1/codex-proxy/openaihttp"
)

func main() {
	var (
		listen   = flag.String("listen", "", "listen address (default: <host>:<port> from env)")
		basePath = flag.String("base-path", "/v1", "base path prefix")
		envFile  = flag.String("env-file", ".env", "optional .env file")
	)
	flag.Parse()

	settings, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	addr := *listen
	if addr == "" {
		addr = fmt.Sprintf("%s:%d", settings.Host, settings.Port)
	}

	if len(settings.APIKeySet()) == 0 {
		log.Printf("[codex-proxy] API_KEYS not set, running in dev mode (no auth)")
	}
	logBackendStatus("codex", settings.ResolvedCodexPath(), settings.CodexModel)
	logBackendStatus("opencode", settings.ResolvedOpencodePath(), settings.OpencodeModel)

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	err = openaihttp.RegisterGinRoutes(r, openaihttp.Config{
		BasePath: *basePath,
		APIKeys:  settings.APIKeySet(),
		Codex: backend.CodexConfig{
			Path:     settings.ResolvedCodexPath(),
			Model:    settings.CodexModel,
			Sandbox:  settings.CodexSandbox,
			FullAuto: settings.CodexFullAuto,
			Timeout:  settings.ExecTimeout,
		},
		OpenCode: backend.OpenCodeConfig{
			Path:    settings.ResolvedOpencodePath(),
			Model:   settings.OpencodeModel,
			Timeout: settings.ExecTimeout,
		},
	})
	if err != nil {
		log.Fatalf("register routes failed: %v", err)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Printf("[codex-proxy] listening on http://%s%s", addr, *basePath)
	log.Printf("[codex-proxy] try: curl http://%s%s/models", addr, *basePath)
	log.Printf("[codex-proxy] OpenAI SDK base_url: http://%s%s", addr, *basePath)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Println(err)
	}
}

func logBackendStatus(name, path, model string) {
	if _, err := exec.LookPath(path); err != nil {
		log.Printf("[codex-proxy] warning: %s CLI not found at %q, requests to it will fail", name, path)
		return
	}
	log.Printf("[codex-proxy] %s backend ready: path=%s model=%s", name, path, model)
}

package startup

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"time"

	"video-ingest/internal/logging"
	"video-ingest/internal/workers"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Backend names for the artifact store.
const (
	BackendFilesystem = "fs"
	BackendS3         = "s3"
)

// maxEncodeGate caps the automatic transcode worker calculation.
const maxEncodeGate = 8

// divider separates sections in the startup log.
const divider = "------------------------------------------------------------"

func logSection(title string) {
	logging.Info("")
	logging.Info(divider)
	logging.Info(title)
	logging.Info(divider)
}

// Config holds all application configuration
type Config struct {
	StoreDir         string
	CacheDir         string
	DatabaseDir      string
	Port             string
	MetricsPort      string
	StoreBackend     string
	S3Bucket         string
	ProbeTimeout     time.Duration
	TranscodeTimeout time.Duration
	TranscodeWorkers int
	AllowedOrigins   []string
	LogHealthChecks  bool
	MetricsEnabled   bool

	// Derived paths
	DatabasePath string
	PosterDir    string
	SpoolDir     string

	// Feature flags based on directory availability
	PostersEnabled bool
}

// LoadConfig loads and validates configuration from environment variables.
// A .env file in the working directory is applied first when present.
func LoadConfig() (*Config, error) {
	dotenvLoaded := godotenv.Load() == nil

	printBanner()
	logSystemInfo()

	logSection("CONFIGURATION")
	if dotenvLoaded {
		logging.Info("  Loaded environment overrides from .env")
	}

	config := &Config{
		StoreDir:         getEnv("STORE_DIR", "/video-store"),
		CacheDir:         getEnv("CACHE_DIR", "/cache"),
		DatabaseDir:      getEnv("DATABASE_DIR", "/database"),
		Port:             getEnv("PORT", "8080"),
		MetricsPort:      getEnv("METRICS_PORT", "9090"),
		StoreBackend:     getEnv("STORE_BACKEND", BackendFilesystem),
		S3Bucket:         getEnv("S3_BUCKET", ""),
		ProbeTimeout:     durationFromEnv("PROBE_TIMEOUT", 10*time.Second),
		TranscodeTimeout: durationFromEnv("TRANSCODE_TIMEOUT", 2*time.Minute),
		TranscodeWorkers: getEnvInt("TRANSCODE_WORKERS", 0),
		AllowedOrigins:   parseOrigins(getEnv("ALLOWED_ORIGINS", "*")),
		LogHealthChecks:  getEnvBool("LOG_HEALTH_CHECKS", false),
		MetricsEnabled:   getEnvBool("METRICS_ENABLED", true),
	}

	if config.TranscodeWorkers <= 0 {
		config.TranscodeWorkers = workers.ForCPU(maxEncodeGate)
	}

	logConfiguration(config)

	if err := validateBackend(config); err != nil {
		return nil, err
	}

	logSection("DIRECTORY SETUP")

	var err error
	if config.StoreDir, err = absolutePath(config.StoreDir, "Store"); err != nil {
		return nil, err
	}
	if config.CacheDir, err = absolutePath(config.CacheDir, "Cache"); err != nil {
		return nil, err
	}
	if config.DatabaseDir, err = absolutePath(config.DatabaseDir, "Database"); err != nil {
		return nil, err
	}

	config.DatabasePath = filepath.Join(config.DatabaseDir, "ingest.db")
	config.PosterDir = filepath.Join(config.CacheDir, "posters")
	config.SpoolDir = filepath.Join(config.CacheDir, "uploads")

	// The filesystem store must be writable before accepting uploads
	if config.StoreBackend == BackendFilesystem {
		if err := requireWritableDir(config.StoreDir, "store", "artifacts"); err != nil {
			return nil, err
		}
		logStoreContents(config.StoreDir)
	}

	// The artifact index cannot run without its directory
	if err := requireWritableDir(config.DatabaseDir, "database", "artifact index"); err != nil {
		return nil, err
	}

	// Poster cache is optional
	config.PostersEnabled = setupOptionalDir(config.PosterDir, "posters")

	// Upload spool falls back to the system temp directory when the cache
	// is not writable
	if !setupOptionalDir(config.SpoolDir, "upload spool") {
		config.SpoolDir = os.TempDir()
		logging.Warn("  Falling back to system temp directory for upload spool: %s", config.SpoolDir)
	}

	logFeatureSummary(config)

	return config, nil
}

func logConfiguration(config *Config) {
	logging.Info("  STORE_DIR:           %s", config.StoreDir)
	logging.Info("  STORE_BACKEND:       %s", config.StoreBackend)
	if config.StoreBackend == BackendS3 {
		logging.Info("  S3_BUCKET:           %s", config.S3Bucket)
	}
	logging.Info("  CACHE_DIR:           %s", config.CacheDir)
	logging.Info("  DATABASE_DIR:        %s", config.DatabaseDir)
	logging.Info("  PORT:                %s", config.Port)
	logging.Info("  METRICS_PORT:        %s", config.MetricsPort)
	logging.Info("  METRICS_ENABLED:     %v", config.MetricsEnabled)
	logging.Info("  PROBE_TIMEOUT:       %v", config.ProbeTimeout)
	logging.Info("  TRANSCODE_TIMEOUT:   %v", config.TranscodeTimeout)
	logging.Info("  TRANSCODE_WORKERS:   %d", config.TranscodeWorkers)
	logging.Info("  ALLOWED_ORIGINS:     %s", strings.Join(config.AllowedOrigins, ", "))
	logging.Info("  LOG_HEALTH_CHECKS:   %v", config.LogHealthChecks)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())
}

// validateBackend checks the artifact store selection.
func validateBackend(config *Config) error {
	switch config.StoreBackend {
	case BackendFilesystem:
		return nil
	case BackendS3:
		if config.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when STORE_BACKEND=%s", BackendS3)
		}
		return nil
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q (expected %q or %q)", config.StoreBackend, BackendFilesystem, BackendS3)
	}
}

func absolutePath(path, name string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s directory path: %w", strings.ToLower(name), err)
	}
	logging.Info("  %s directory (absolute): %s", name, abs)
	return abs, nil
}

// requireWritableDir ensures a mandatory directory exists and accepts
// writes before the server starts taking uploads.
func requireWritableDir(path, name, purpose string) error {
	if err := ensureDirectory(path, name); err != nil {
		return fmt.Errorf("%s directory error: %w", name, err)
	}

	logging.Debug("  Testing %s directory write access...", name)
	if err := probeWrite(path); err != nil {
		return fmt.Errorf("%s directory is not writable (required for %s): %w", name, purpose, err)
	}
	logging.Info("  [OK] %s directory is writable", name)
	return nil
}

// logStoreContents reports how many artifacts are already present.
func logStoreContents(dir string) {
	if !logging.IsDebugEnabled() {
		return
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	artifacts := 0
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".mp4") {
			artifacts++
		}
	}
	logging.Debug("    Contents: %d stored artifacts", artifacts)
}

func logFeatureSummary(config *Config) {
	logging.Info("")
	logging.Info("  Features:")
	logging.Info("    Posters: %s", enabledString(config.PostersEnabled))
	logging.Info("    Metrics: %s", enabledString(config.MetricsEnabled))
}

func setupOptionalDir(path, name string) bool {
	logging.Debug("  Setting up %s directory: %s", name, path)

	err := os.MkdirAll(path, 0o755)
	if err == nil {
		err = probeWrite(path)
	}
	if err != nil {
		logging.Warn("    %s directory unavailable, disabling: %v", name, err)
		return false
	}

	logging.Debug("    [OK] %s directory ready", name)
	return true
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// parseOrigins splits a comma-separated ALLOWED_ORIGINS value into a list,
// trimming whitespace and dropping empty entries. An empty result falls back
// to the wildcard origin.
func parseOrigins(value string) []string {
	var origins []string
	for _, origin := range strings.Split(value, ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

// LogDatabaseInit logs artifact index initialization
func LogDatabaseInit(duration time.Duration) {
	logSection("ARTIFACT INDEX INITIALIZATION")
	logging.Info("  [OK] Index initialized in %v", duration)
}

// LogStoreInit logs artifact store initialization
func LogStoreInit(backend, location string) {
	logSection("ARTIFACT STORE INITIALIZATION")
	logging.Info("  Backend:  %s", backend)
	logging.Info("  Location: %s", location)
}

// LogTranscoderInit logs transcoder initialization and checks the ffmpeg
// toolchain. Returns false when ffmpeg or ffprobe is missing.
func LogTranscoderInit(workerCount int) bool {
	logSection("TRANSCODER INITIALIZATION")
	logging.Info("  Concurrent encodes: %d", workerCount)

	ready := true
	for _, tool := range []string{"ffmpeg", "ffprobe"} {
		if err := checkTool(tool); err != nil {
			logging.Warn("  %s check failed: %v", tool, err)
			ready = false
			continue
		}
		logging.Info("  [OK] %s is available", tool)
	}
	if !ready {
		logging.Warn("  Uploads cannot be processed until the ffmpeg toolchain is installed")
	}
	return ready
}

// LogPosterInit logs poster generator availability
func LogPosterInit(enabled bool) {
	if !enabled {
		logging.Info("  Posters disabled (cache directory not writable)")
	}
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			// Route might not have methods specified
			methods = []string{"*"}
		}

		name := route.GetName()

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   name,
			})
		}

		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes dynamically
func LogHTTPRoutes(router *mux.Router, logHealthChecks bool) {
	logSection("HTTP SERVER SETUP")

	if logging.IsDebugEnabled() {
		logRouteTable(router)
	}

	logging.Info("  Request logging enabled")
	if logHealthChecks {
		logging.Info("    Health probes: logged")
	} else {
		logging.Info("    Health probes: suppressed (LOG_HEALTH_CHECKS=true to log)")
	}
}

// logRouteTable dumps every registered route, grouped by first path
// segment.
func logRouteTable(router *mux.Router) {
	routes, err := GetRoutes(router)
	if err != nil {
		logging.Warn("error walking routes: %v", err)
	}

	logging.Debug("  Registered routes (%d total):", len(routes))
	logging.Debug("")

	groups := make(map[string][]RouteInfo)
	for _, route := range routes {
		group := getRouteGroup(route.Path)
		groups[group] = append(groups[group], route)
	}

	groupNames := make([]string, 0, len(groups))
	for group := range groups {
		groupNames = append(groupNames, group)
	}
	slices.Sort(groupNames)

	for _, group := range groupNames {
		label := group
		if label == "" {
			label = "root"
		}
		logging.Debug("  [%s]", label)

		for _, route := range groups[group] {
			logging.Debug("    %-6s %s", route.Method, route.Path)
		}
		logging.Debug("")
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	group, _, _ := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	return group
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	logSection("SERVER STARTED")
	logging.Info("  Startup time: %v", config.StartupDuration)

	for _, host := range []string{"0.0.0.0", "localhost"} {
		logging.Info("")
		logging.Info("  On %s:", host)
		logging.Info("    Ingest API:  http://%s:%s", host, config.Port)
		if config.MetricsEnabled {
			logging.Info("    Metrics:     http://%s:%s/metrics", host, config.MetricsPort)
		}
	}
	if !config.MetricsEnabled {
		logging.Info("")
		logging.Info("  Metrics are disabled (METRICS_ENABLED=false)")
	}

	logging.Info("")
	logging.Info("  Press Ctrl+C to stop")
	logging.Info(divider)
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logSection(fmt.Sprintf("SHUTDOWN INITIATED (received %s)", signal))
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...any) {
	logging.Fatal(format, args...)
}

func printBanner() {
	banner := `
------------------------------------------------------------
 _    ___     __           ____                       __
| |  / (_)___/ /__  ____  /  _/___  ____ ____  _____/ /_
| | / / / __  / _ \/ __ \ / // __ \/ __ '/ _ \/ ___/ __/
| |/ / / /_/ /  __/ /_/ // // / / / /_/ /  __(__  ) /_
|___/_/\__,_/\___/\____/___/_/ /_/\__, /\___/____/\__/
                                 /____/
------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  %s (%s), built %s", Version, Commit, BuildTime)
	logging.Info("  Started %s", time.Now().Format(time.RFC1123))
}

func logSystemInfo() {
	logSection("SYSTEM INFORMATION")
	logging.Info("  Runtime:  %s on %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)

	procs := runtime.GOMAXPROCS(0)
	logging.Info("  CPUs:     %d online, GOMAXPROCS=%d", runtime.NumCPU(), procs)
	if procs < runtime.NumCPU() {
		logging.Info("  (container CPU limit detected)")
	}

	if !logging.IsDebugEnabled() {
		return
	}
	logging.Debug("  Goroutines: %d", runtime.NumGoroutine())
	if wd, err := os.Getwd(); err == nil {
		logging.Debug("  Working dir: %s", wd)
	}
	if host, err := os.Hostname(); err == nil {
		logging.Debug("  Hostname: %s", host)
	}
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(path, 0o755); err != nil {
			return err
		}
		logging.Debug("    [OK] Created %s", path)
		return nil
	case err != nil:
		return err
	case !info.IsDir():
		return fmt.Errorf("%s exists but is not a directory", path)
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

// probeWrite drops and removes a marker file to verify the directory
// accepts writes. A leftover marker is logged, not fatal.
func probeWrite(dir string) error {
	marker := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(marker, []byte("probe"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(marker); err != nil {
		logging.Warn("could not remove probe file %s: %v", marker, err)
	}
	return nil
}

// checkTool verifies that a toolchain binary is on PATH and answers
// -version within a short deadline.
func checkTool(name string) error {
	path, err := exec.LookPath(name)
	if err != nil {
		return fmt.Errorf("%s not found in PATH", name)
	}
	logging.Debug("  %s path: %s", name, path)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, name, "-version").Output()
	if err != nil {
		return fmt.Errorf("failed to get %s version: %w", name, err)
	}

	if first, _, _ := strings.Cut(string(output), "\n"); first != "" {
		logging.Debug("  %s version: %s", name, strings.TrimSpace(first))
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, raw, fallback)
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %v", key, raw, fallback)
		return fallback
	}
	return parsed
}

// durationFromEnv reads a duration variable, enforcing a positive value.
func durationFromEnv(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		logging.Warn("  Invalid %s %q, using default: %v", key, raw, fallback)
		return fallback
	}
	return parsed
}

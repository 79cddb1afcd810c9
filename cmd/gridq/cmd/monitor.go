package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/pbauer/gridq/pkg/store"
)

var listenAddr string

// monitorCmd serves the attempt ledger and lifecycle metrics over HTTP.
var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Serve attempt status and metrics over HTTP",
	Long:  `Expose the attempt ledger as JSON and lifecycle counters in Prometheus format.`,
	RunE:  runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().StringVar(&listenAddr, "listen", "", "bind address (default from config)")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	addr := listenAddr
	if addr == "" {
		addr = cfg.ListenAddr
	}

	ledger, err := store.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening attempt ledger: %w", err)
	}
	defer ledger.Close()

	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	}).Methods("GET")
	r.HandleFunc("/attempts", func(w http.ResponseWriter, req *http.Request) {
		attempts, err := ledger.ListAttempts()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]interface{}{"attempts": attempts, "count": len(attempts)})
	}).Methods("GET")
	r.HandleFunc("/attempts/{id}", func(w http.ResponseWriter, req *http.Request) {
		attempt, err := ledger.GetAttempt(mux.Vars(req)["id"])
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		writeJSON(w, attempt)
	}).Methods("GET")

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	log.Info("Monitor listening", map[string]interface{}{"addr": addr})
	return srv.ListenAndServe()
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

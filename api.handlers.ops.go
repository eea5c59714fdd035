package main

import (
	"expvar"
	"fmt"
	"net/http"
	"net/http/pprof"
	"runtime"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/julienschmidt/httprouter"
)

// export goroutines to be used by expvar handler.
var goroutines = expvar.NewInt("goroutines")

// Maintenance handles request to enable or disable the maintenance mode of the service.
// Enable the maintenance mode : /ops/maintenance?status=enable&msg=message-to-be-displayed-to-users
// Disable the maintenance mode: /ops/maintenance?status=disable
// Any other status value shows the current mode.
func (api *APIHandler) Maintenance(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx := r.Context()
	requestID := GetValueFromContext(ctx, RequestIDContextKey)
	q := r.URL.Query()

	switch q.Get("status") {
	case "enable":
		started := api.clock.Now().UTC()
		api.mode.Enable(q.Get("msg"), started)
		api.GetLoggerFromContext(ctx).Warn("maintenance mode enabled")
		api.send(ctx, w, http.StatusOK, map[string]interface{}{
			"requestid":           requestID,
			"maintenance.started": started.Format(time.RFC1123),
			"maintenance.message": q.Get("msg"),
			"message":             "Maintenance mode enabled successfully.",
		})

	case "disable":
		api.mode.Disable()
		api.GetLoggerFromContext(ctx).Warn("maintenance mode disabled")
		api.send(ctx, w, http.StatusOK, map[string]interface{}{
			"requestid": requestID,
			"message":   "Maintenance mode disabled successfully.",
		})

	default:
		message, started := api.mode.Infos()
		since := ""
		if !started.IsZero() {
			since = started.Format(time.RFC1123)
		}
		api.send(ctx, w, http.StatusOK, map[string]interface{}{
			"requestid": requestID,
			"enabled":   api.mode.enabled.Load(),
			"reason":    message,
			"since":     since,
		})
	}
}

// GetMemStats returns memory statistics with number of goroutines in json.
func GetMemStats(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	goroutines.Set(int64(runtime.NumGoroutine()))
	expvar.Handler().ServeHTTP(w, r)
}

// RunGC forces the run of the garbage collector asynchronously.
func (api *APIHandler) RunGC(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	go runtime.GC()
	api.send(r.Context(), w, http.StatusOK, map[string]string{"called": "go runtime.GC()"})
}

// FreeOSMemory forces the garbage collector to run and tries to return the
// memory back to the operating system in an asynchronous fashion.
func (api *APIHandler) FreeOSMemory(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	go debug.FreeOSMemory()
	api.send(r.Context(), w, http.StatusOK, map[string]string{"called": "go debug.FreeOSMemory()"})
}

// GetStatistics provides useful details about the application to the internal ops users.
// The stats returns by this handler do not contain the ops request which triggered that.
// That is why we remove 1 from the called field value in order to match the status stats.
func (api *APIHandler) GetStatistics(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx := r.Context()
	message, started := api.mode.Infos()
	maintenanceStarted := ""
	if !started.IsZero() {
		maintenanceStarted = started.Format(time.RFC1123)
	}

	called := atomic.LoadUint64(&api.stats.called)
	if called > 0 {
		called--
	}

	api.stats.mu.RLock()
	status := make(map[int]uint64, len(api.stats.status))
	for code, count := range api.stats.status {
		status[code] = count
	}
	api.stats.mu.RUnlock()

	api.send(ctx, w, http.StatusOK, map[string]interface{}{
		"requestid":      GetValueFromContext(ctx, RequestIDContextKey),
		"app.version":    api.stats.version,
		"app.container":  api.stats.container,
		"app.platform":   api.stats.platform,
		"go.version":     api.stats.runtime,
		"storage.driver": api.config.Storage.Driver,
		"called":         called,
		"started":        api.stats.started.Format(time.RFC1123),
		"uptime":         fmt.Sprintf("%.0f mins", api.clock.Now().Sub(api.stats.started).Minutes()),
		"maintenance": map[string]interface{}{
			"enabled": api.mode.enabled.Load(),
			"started": maintenanceStarted,
			"message": message,
		},
		"status": status,
	})
}

// GetConfigs serves current in-use configurations. Secrets are not exported.
func (api *APIHandler) GetConfigs(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx := r.Context()
	api.send(ctx, w, http.StatusOK, map[string]interface{}{
		"requestid": GetValueFromContext(ctx, RequestIDContextKey),
		"configs":   api.config,
	})
}

// OpsHandlerWrapper turns a standard handler into an httprouter one.
func (api *APIHandler) OpsHandlerWrapper(h http.Handler) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		h.ServeHTTP(w, r)
	}
}

// GetProfilerIndexPage serves the pprof index. The path is rewritten
// since pprof.Index only recognizes the `/debug/pprof/` prefix.
func (api *APIHandler) GetProfilerIndexPage(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	r2 := r.Clone(r.Context())
	r2.URL.Path = "/debug/pprof/"
	pprof.Index(w, r2)
}

func (api *APIHandler) GetCPUProfile(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	pprof.Profile(w, r)
}

func (api *APIHandler) GetTraceProfile(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	pprof.Trace(w, r)
}

func (api *APIHandler) GetSymbol(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	pprof.Symbol(w, r)
}

func (api *APIHandler) GetCmdLine(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	pprof.Cmdline(w, r)
}

// Package testing provides an in-process fake of the libpod REST service.
//
// The Daemon serves HTTP over an in-memory listener. Its Dial method can be
// plugged into a transport as the local dialer, or into a mock SSH tunnel as
// the remote socket, so both connection paths hit the same fake.
package testing

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"
)

// APIPrefix is the versioned path prefix the fake serves under.
const APIPrefix = "/v4.0.0"

// DefaultVersion is reported in the Libpod-API-Version header.
const DefaultVersion = "4.9.3"

// Container is a container as the list endpoint reports it.
type Container struct {
	ID      string    `json:"Id"`
	Names   []string  `json:"Names"`
	Image   string    `json:"Image"`
	Command []string  `json:"Command"`
	State   string    `json:"State"`
	Status  string    `json:"Status"`
	Created time.Time `json:"Created"`
	Pod     string    `json:"Pod,omitempty"`
	PodName string    `json:"PodName,omitempty"`
}

// Image is an image summary.
type Image struct {
	ID         string   `json:"Id"`
	RepoTags   []string `json:"RepoTags"`
	Created    int64    `json:"Created"`
	Size       int64    `json:"Size"`
	Containers int      `json:"Containers"`
}

// PodContainer is a member of a pod.
type PodContainer struct {
	ID     string `json:"Id"`
	Names  string `json:"Names"`
	Status string `json:"Status"`
}

// Pod is a pod list entry.
type Pod struct {
	ID         string         `json:"Id"`
	Name       string         `json:"Name"`
	Status     string         `json:"Status"`
	Created    time.Time      `json:"Created"`
	InfraID    string         `json:"InfraId"`
	Containers []PodContainer `json:"Containers"`
}

// Volume is a volume list entry.
type Volume struct {
	Name       string            `json:"Name"`
	Driver     string            `json:"Driver"`
	Mountpoint string            `json:"Mountpoint"`
	CreatedAt  time.Time         `json:"CreatedAt"`
	Labels     map[string]string `json:"Labels"`
}

// Request is one request the daemon received.
type Request struct {
	Method    string
	Path      string // without APIPrefix
	Query     url.Values
	RequestID string
}

// Response overrides the normal handling of one method and path.
type Response struct {
	Status      int
	ContentType string // defaults to application/json
	Body        string
	Delay       time.Duration // wait before answering, or until the client gives up
}

// Daemon is a fake container daemon. The zero value is not usable; call NewDaemon.
type Daemon struct {
	mu         sync.Mutex
	containers []Container
	images     []Image
	pods       []Pod
	volumes    []Volume
	overrides  map[string]Response
	requests   []Request
	dials      int
	apiVersion string

	listener *pipeListener
	server   *http.Server
}

// NewDaemon starts an empty fake daemon. Close it when done.
func NewDaemon() *Daemon {
	d := &Daemon{
		overrides:  make(map[string]Response),
		apiVersion: DefaultVersion,
		listener:   newPipeListener(),
	}
	d.server = &http.Server{Handler: d.Handler()}
	go func() { _ = d.server.Serve(d.listener) }()
	return d
}

// Close stops serving. Later dials are refused.
func (d *Daemon) Close() error {
	return d.server.Close()
}

// Dial opens a connection to the daemon. The network and address are ignored.
func (d *Daemon) Dial(network, address string) (net.Conn, error) {
	return d.DialContext(context.Background(), network, address)
}

// DialContext opens a connection to the daemon.
func (d *Daemon) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	d.mu.Lock()
	d.dials++
	d.mu.Unlock()
	return d.listener.dial(ctx, network)
}

// Dials returns how many connections were opened.
func (d *Daemon) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// SetAPIVersion changes the version the daemon advertises.
func (d *Daemon) SetAPIVersion(v string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.apiVersion = v
}

// Override replaces the response for method and path (path without APIPrefix).
func (d *Daemon) Override(method, path string, resp Response) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.overrides[method+" "+path] = resp
}

// AddContainer adds containers.
func (d *Daemon) AddContainer(c ...Container) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.containers = append(d.containers, c...)
}

// AddImage adds images.
func (d *Daemon) AddImage(i ...Image) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.images = append(d.images, i...)
}

// AddPod adds pods.
func (d *Daemon) AddPod(p ...Pod) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pods = append(d.pods, p...)
}

// AddVolume adds volumes.
func (d *Daemon) AddVolume(v ...Volume) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.volumes = append(d.volumes, v...)
}

// Containers returns a copy of the current containers.
func (d *Daemon) Containers() []Container {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Container(nil), d.containers...)
}

// Requests returns every request received, in order.
func (d *Daemon) Requests() []Request {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Request(nil), d.requests...)
}

// RequestsTo returns the requests whose path starts with prefix.
func (d *Daemon) RequestsTo(prefix string) []Request {
	var out []Request
	for _, r := range d.Requests() {
		if strings.HasPrefix(r.Path, prefix) {
			out = append(out, r)
		}
	}
	return out
}

// Handler returns the daemon's HTTP handler.
func (d *Daemon) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /_ping", d.ping)
	mux.HandleFunc("GET /libpod/version", d.version)
	mux.HandleFunc("GET /libpod/info", d.info)

	mux.HandleFunc("GET /libpod/containers/json", d.listContainers)
	mux.HandleFunc("GET /libpod/containers/{id}/json", d.inspectContainer)
	mux.HandleFunc("POST /libpod/containers/{id}/start", d.startContainer)
	mux.HandleFunc("POST /libpod/containers/{id}/stop", d.stopContainer)
	mux.HandleFunc("POST /libpod/containers/{id}/kill", d.killContainer)
	mux.HandleFunc("DELETE /libpod/containers/{id}", d.removeContainer)

	mux.HandleFunc("GET /libpod/images/json", d.listImages)
	mux.HandleFunc("GET /libpod/images/{id}/json", d.inspectImage)
	mux.HandleFunc("DELETE /libpod/images/{id}", d.removeImage)

	mux.HandleFunc("GET /libpod/pods/json", d.listPods)
	mux.HandleFunc("DELETE /libpod/pods/{id}", d.removePod)

	mux.HandleFunc("GET /libpod/volumes/json", d.listVolumes)
	mux.HandleFunc("DELETE /libpod/volumes/{id}", d.removeVolume)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, APIPrefix)
		if path == "" {
			path = "/"
		}

		d.mu.Lock()
		d.requests = append(d.requests, Request{
			Method:    r.Method,
			Path:      path,
			Query:     r.URL.Query(),
			RequestID: r.Header.Get("X-Request-Id"),
		})
		override, overridden := d.overrides[r.Method+" "+path]
		version := d.apiVersion
		d.mu.Unlock()

		w.Header().Set("Libpod-API-Version", version)
		w.Header().Set("Server", "Libpod/"+version+" (linux)")

		if overridden {
			serveOverride(w, r, override)
			return
		}

		r2 := r.Clone(r.Context())
		r2.URL.Path = path
		r2.URL.RawPath = ""
		mux.ServeHTTP(w, r2)
	})
}

func serveOverride(w http.ResponseWriter, r *http.Request, resp Response) {
	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-r.Context().Done():
			return
		}
	}
	contentType := resp.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, _ = w.Write([]byte(resp.Body))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a libpod-style error body.
func writeError(w http.ResponseWriter, status int, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	writeJSON(w, status, map[string]any{
		"cause":    http.StatusText(status),
		"message":  msg,
		"response": status,
	})
}

func (d *Daemon) ping(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write([]byte("OK"))
}

func (d *Daemon) version(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	v := d.apiVersion
	d.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"Version":    v,
		"ApiVersion": "1.41",
		"Os":         "linux",
		"Arch":       "amd64",
		"GoVersion":  "go1.21.6",
	})
}

func (d *Daemon) info(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	defer d.mu.Unlock()
	running := 0
	for _, c := range d.containers {
		if c.State == "running" {
			running++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"host": map[string]any{
			"hostname": "fake",
			"os":       "linux",
			"arch":     "amd64",
			"remoteSocket": map[string]any{
				"path":   "/run/podman/podman.sock",
				"exists": true,
			},
		},
		"store": map[string]any{
			"containerStore": map[string]any{"number": len(d.containers), "running": running},
			"imageStore":     map[string]any{"number": len(d.images)},
		},
		"version": map[string]any{"Version": d.apiVersion},
	})
}

// findContainer matches a full ID, an ID prefix, or a name. Callers hold d.mu.
func (d *Daemon) findContainer(ref string) int {
	for i, c := range d.containers {
		if c.ID == ref || (len(ref) >= 3 && strings.HasPrefix(c.ID, ref)) {
			return i
		}
		for _, n := range c.Names {
			if n == ref {
				return i
			}
		}
	}
	return -1
}

func (d *Daemon) listContainers(w http.ResponseWriter, r *http.Request) {
	all := r.URL.Query().Get("all") == "true"

	d.mu.Lock()
	out := make([]Container, 0, len(d.containers))
	for _, c := range d.containers {
		if all || c.State == "running" {
			out = append(out, c)
		}
	}
	d.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (d *Daemon) inspectContainer(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	d.mu.Lock()
	i := d.findContainer(id)
	if i < 0 {
		d.mu.Unlock()
		writeError(w, http.StatusNotFound, "no container with name or ID %q found: no such container", id)
		return
	}
	c := d.containers[i]
	d.mu.Unlock()

	name := ""
	if len(c.Names) > 0 {
		name = c.Names[0]
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"Id":        c.ID,
		"Name":      name,
		"Created":   c.Created,
		"ImageName": c.Image,
		"Pod":       c.Pod,
		"State": map[string]any{
			"Status":  c.State,
			"Running": c.State == "running",
		},
		"Config": map[string]any{
			"Cmd": c.Command,
		},
	})
}

// transition runs fn on the container under the lock and writes its status.
func (d *Daemon) transition(w http.ResponseWriter, r *http.Request, fn func(c *Container) (int, string)) {
	id := r.PathValue("id")
	d.mu.Lock()
	i := d.findContainer(id)
	if i < 0 {
		d.mu.Unlock()
		writeError(w, http.StatusNotFound, "no container with name or ID %q found: no such container", id)
		return
	}
	status, msg := fn(&d.containers[i])
	d.mu.Unlock()

	if msg != "" {
		writeError(w, status, "%s", msg)
		return
	}
	w.WriteHeader(status)
}

func (d *Daemon) startContainer(w http.ResponseWriter, r *http.Request) {
	d.transition(w, r, func(c *Container) (int, string) {
		if c.State == "running" {
			return http.StatusNotModified, ""
		}
		c.State = "running"
		c.Status = "Up Less than a second"
		return http.StatusNoContent, ""
	})
}

func (d *Daemon) stopContainer(w http.ResponseWriter, r *http.Request) {
	d.transition(w, r, func(c *Container) (int, string) {
		if c.State != "running" {
			return http.StatusNotModified, ""
		}
		c.State = "exited"
		c.Status = "Exited (0) Less than a second ago"
		return http.StatusNoContent, ""
	})
}

func (d *Daemon) killContainer(w http.ResponseWriter, r *http.Request) {
	d.transition(w, r, func(c *Container) (int, string) {
		if c.State != "running" {
			return http.StatusConflict, fmt.Sprintf("can only kill running containers. %s is in state %s: container state improper", c.ID, c.State)
		}
		c.State = "exited"
		c.Status = "Exited (137) Less than a second ago"
		return http.StatusNoContent, ""
	})
}

func (d *Daemon) removeContainer(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	force := r.URL.Query().Get("force") == "true"

	d.mu.Lock()
	i := d.findContainer(id)
	if i < 0 {
		d.mu.Unlock()
		writeError(w, http.StatusNotFound, "no container with name or ID %q found: no such container", id)
		return
	}
	c := d.containers[i]
	if c.State == "running" && !force {
		d.mu.Unlock()
		writeError(w, http.StatusConflict, "cannot remove container %s as it is running - running or paused containers cannot be removed without force: container state improper", c.ID)
		return
	}
	d.containers = append(d.containers[:i], d.containers[i+1:]...)
	d.mu.Unlock()

	writeJSON(w, http.StatusOK, []map[string]any{{"Id": c.ID, "Err": nil}})
}

func (d *Daemon) findImage(ref string) int {
	for i, img := range d.images {
		if img.ID == ref || (len(ref) >= 3 && strings.HasPrefix(img.ID, ref)) {
			return i
		}
		for _, tag := range img.RepoTags {
			if tag == ref || strings.TrimSuffix(tag, ":latest") == ref {
				return i
			}
		}
	}
	return -1
}

func (d *Daemon) listImages(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	out := append(make([]Image, 0, len(d.images)), d.images...)
	d.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (d *Daemon) inspectImage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	d.mu.Lock()
	i := d.findImage(id)
	if i < 0 {
		d.mu.Unlock()
		writeError(w, http.StatusNotFound, "%s: image not known", id)
		return
	}
	img := d.images[i]
	d.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"Id":       img.ID,
		"RepoTags": img.RepoTags,
		"Created":  time.Unix(img.Created, 0).UTC(),
		"Size":     img.Size,
		"Os":       "linux",
	})
}

func (d *Daemon) removeImage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	d.mu.Lock()
	i := d.findImage(id)
	if i < 0 {
		d.mu.Unlock()
		writeError(w, http.StatusNotFound, "%s: image not known", id)
		return
	}
	img := d.images[i]
	if img.Containers > 0 && r.URL.Query().Get("force") != "true" {
		d.mu.Unlock()
		writeError(w, http.StatusConflict, "image used by %d containers: image is in use by a container", img.Containers)
		return
	}
	d.images = append(d.images[:i], d.images[i+1:]...)
	d.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"Deleted":  []string{img.ID},
		"Untagged": img.RepoTags,
		"Errors":   []string{},
		"ExitCode": 0,
	})
}

func (d *Daemon) listPods(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	out := append(make([]Pod, 0, len(d.pods)), d.pods...)
	d.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (d *Daemon) removePod(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	d.mu.Lock()
	for i, p := range d.pods {
		if p.ID == id || p.Name == id || (len(id) >= 3 && strings.HasPrefix(p.ID, id)) {
			d.pods = append(d.pods[:i], d.pods[i+1:]...)
			d.mu.Unlock()
			writeJSON(w, http.StatusOK, map[string]any{"Id": p.ID, "Err": nil})
			return
		}
	}
	d.mu.Unlock()
	writeError(w, http.StatusNotFound, "unable to find pod %q: no such pod", id)
}

func (d *Daemon) listVolumes(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	out := append(make([]Volume, 0, len(d.volumes)), d.volumes...)
	d.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	writeJSON(w, http.StatusOK, out)
}

func (d *Daemon) removeVolume(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("id")
	d.mu.Lock()
	for i, v := range d.volumes {
		if v.Name == name {
			d.volumes = append(d.volumes[:i], d.volumes[i+1:]...)
			d.mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	d.mu.Unlock()
	writeError(w, http.StatusNotFound, "no volume with name %q found: no such volume", name)
}

// pipeListener is a net.Listener whose connections are net.Pipe pairs.
type pipeListener struct {
	conns chan net.Conn
	done  chan struct{}
	once  sync.Once
}

func newPipeListener() *pipeListener {
	return &pipeListener{
		conns: make(chan net.Conn),
		done:  make(chan struct{}),
	}
}

func (l *pipeListener) Accept() (net.Conn, error) {
	select {
	case c := <-l.conns:
		return c, nil
	case <-l.done:
		return nil, net.ErrClosed
	}
}

func (l *pipeListener) Close() error {
	l.once.Do(func() { close(l.done) })
	return nil
}

func (l *pipeListener) Addr() net.Addr {
	return pipeAddr{}
}

func (l *pipeListener) dial(ctx context.Context, network string) (net.Conn, error) {
	if network == "" {
		network = "unix"
	}
	refused := &net.OpError{Op: "dial", Net: network, Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}

	select {
	case <-l.done:
		return nil, refused
	default:
	}

	client, server := net.Pipe()
	select {
	case l.conns <- server:
		return client, nil
	case <-l.done:
		client.Close()
		server.Close()
		return nil, refused
	case <-ctx.Done():
		client.Close()
		server.Close()
		return nil, ctx.Err()
	}
}

type pipeAddr struct{}

func (pipeAddr) Network() string { return "pipe" }
func (pipeAddr) String() string  { return "fake-daemon" }

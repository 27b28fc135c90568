package network

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"
)

// probeTimeout bounds each host probe during a scan.
const probeTimeout = 500 * time.Millisecond

// DiscoveredHost is a replay service found on the network
type DiscoveredHost struct {
	Addr string `json:"addr"`
	// State is empty when the status endpoint refused the request.
	State string `json:"state,omitempty"`
	Macro string `json:"macro,omitempty"`
}

// GetLocalIP returns the primary local IP address
func GetLocalIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String(), nil
}

// ScanLAN probes every address of the local /24 subnet for a replay service
// listening on port. No token is sent: any host can answer the health check,
// so status is only reported by services that run without one.
func ScanLAN(ctx context.Context, port int) ([]DiscoveredHost, error) {
	localIP, err := GetLocalIP()
	if err != nil {
		return nil, fmt.Errorf("failed to get local IP: %w", err)
	}
	return scanSubnet(ctx, localIP, port)
}

func scanSubnet(ctx context.Context, ip string, port int) ([]DiscoveredHost, error) {
	parts := strings.Split(ip, ".")
	if len(parts) != 4 {
		return nil, fmt.Errorf("invalid IP address format: %s", ip)
	}
	subnet := strings.Join(parts[:3], ".")

	addrs := make([]string, 0, 254)
	for i := 1; i <= 254; i++ {
		addrs = append(addrs, net.JoinHostPort(fmt.Sprintf("%s.%d", subnet, i), fmt.Sprint(port)))
	}
	return Scan(ctx, addrs, ""), nil
}

// Scan probes addrs concurrently and returns the ones running a replay
// service, sorted by address.
func Scan(ctx context.Context, addrs []string, token string) []DiscoveredHost {
	client := &http.Client{Timeout: probeTimeout}

	var (
		hosts []DiscoveredHost
		mu    sync.Mutex
		wg    sync.WaitGroup
	)
	for _, addr := range addrs {
		wg.Go(func() {
			if host, ok := Probe(ctx, client, addr, token); ok {
				mu.Lock()
				hosts = append(hosts, host)
				mu.Unlock()
			}
		})
	}
	wg.Wait()

	slices.SortFunc(hosts, func(a, b DiscoveredHost) int { return strings.Compare(a.Addr, b.Addr) })
	return hosts
}

// Probe checks whether addr (host:port) runs a replay service and, when
// the token is accepted, what it is doing.
func Probe(ctx context.Context, client *http.Client, addr, token string) (DiscoveredHost, bool) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	resp, err := get(ctx, client, "http://"+addr+"/health", "")
	if err != nil {
		return DiscoveredHost{}, false
	}
	var health struct {
		Status string `json:"status"`
	}
	err = json.NewDecoder(resp.Body).Decode(&health)
	resp.Body.Close()
	if err != nil || resp.StatusCode != http.StatusOK || health.Status != "ok" {
		return DiscoveredHost{}, false
	}

	host := DiscoveredHost{Addr: addr}
	resp, err = get(ctx, client, "http://"+addr+"/api/status", token)
	if err != nil {
		return host, true
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return host, true
	}

	var status struct {
		State      string `json:"state"`
		Checkpoint *struct {
			Macro string `json:"macro"`
		} `json:"checkpoint"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err == nil {
		host.State = status.State
		if status.Checkpoint != nil {
			host.Macro = status.Checkpoint.Macro
		}
	}
	return host, true
}

func get(ctx context.Context, client *http.Client, url, token string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return client.Do(req)
}

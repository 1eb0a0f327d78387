// Package discovery finds Moonraker instances on the local network via
// mDNS/DNS-SD so the web UI can offer printer URLs instead of making users
// type IP addresses.
package discovery

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/grandcat/zeroconf"

	"github.com/oernster/printer-launcher/internal/logger"
	"github.com/oernster/printer-launcher/internal/moonraker"
)

// Moonraker advertises itself as _moonraker._tcp; Klipper hosts usually also
// expose the generic HTTP service for Mainsail/Fluidd.
var serviceTypes = []string{"_moonraker._tcp", "_http._tcp"}

// Printer is one discovered Moonraker candidate.
type Printer struct {
	Name    string `json:"name"`
	Host    string `json:"host"`
	Address string `json:"address"`
	Port    int    `json:"port"`
	APIURL  string `json:"api_url"`
	Service string `json:"service"`
}

// Browse scans the local network for the given duration and returns the
// discovered printers, de-duplicated by address:port and sorted by name.
func Browse(ctx context.Context, timeout time.Duration, log *logger.Logger) ([]Printer, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	results := make(chan Printer, 32)
	for _, serviceType := range serviceTypes {
		serviceType := serviceType
		go browseService(ctx, serviceType, results, log)
	}

	seen := make(map[string]bool)
	var printers []Printer
	for {
		select {
		case <-ctx.Done():
			sort.Slice(printers, func(i, j int) bool { return printers[i].Name < printers[j].Name })
			return printers, nil
		case printer := <-results:
			key := fmt.Sprintf("%s:%d", printer.Address, printer.Port)
			if seen[key] {
				continue
			}
			seen[key] = true
			printers = append(printers, printer)
		}
	}
}

func browseService(ctx context.Context, serviceType string, results chan<- Printer, log *logger.Logger) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		if log != nil {
			log.Warn("mDNS resolver error", "error", err.Error())
		}
		return
	}

	entries := make(chan *zeroconf.ServiceEntry)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case entry, ok := <-entries:
				if !ok {
					return
				}
				for _, printer := range printersFromEntry(entry, serviceType) {
					select {
					case results <- printer:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	if log != nil {
		log.Debug("mDNS browse start", "service", serviceType)
	}
	if err := resolver.Browse(ctx, serviceType, "local.", entries); err != nil {
		if log != nil {
			log.Warn("mDNS browse error", "service", serviceType, "error", err.Error())
		}
	}
}

// printersFromEntry converts a service entry into printer candidates, one
// per advertised IPv4 address.
func printersFromEntry(entry *zeroconf.ServiceEntry, serviceType string) []Printer {
	port := entry.Port
	if serviceType != "_moonraker._tcp" {
		// Generic HTTP services are usually the frontend; the API itself
		// listens on the standard Moonraker port.
		port = moonraker.DefaultAPIPort
	}

	var printers []Printer
	for _, ip := range entry.AddrIPv4 {
		printers = append(printers, Printer{
			Name:    entry.Instance,
			Host:    entry.HostName,
			Address: ip.String(),
			Port:    port,
			APIURL:  fmt.Sprintf("http://%s:%d/printer/objects/query", ip.String(), port),
			Service: serviceType,
		})
	}
	return printers
}

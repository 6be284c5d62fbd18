// Package simconfig loads the YAML-described run configuration
// (PrepareOptions, RunOptions, the per-side Options structs) and the region-
// latency table that backs every link's latency, using a YAML-tagged
// description-struct convention.
package simconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/rmourey26/hydra-sim/internal/mplex"
)

// ClientOptions are the per-client behavioural parameters names under
// PrepareOptions.
type ClientOptions struct {
	OnlineLikelihood float64 `yaml:"onlineLikelihood"`
	SubmitLikelihood float64 `yaml:"submitLikelihood"`
}

// PrepareOptions configures event-tape generation ahead of a run.
// ClientRegion, combined with RunOptions.Server.Region, is what a driver
// resolves through Config.RegionTable() to get the client-server link
// latency — a direct stand-in for a per-run constant latency argument.
type PrepareOptions struct {
	NumberOfClients int           `yaml:"numberOfClients"`
	Duration        int           `yaml:"duration"` // slots
	Client          ClientOptions `yaml:"client"`
	ClientRegion    mplex.Region  `yaml:"clientRegion"`
}

// PaymentWindowOptions mirrors tail.PaymentWindow for YAML loading. Lower
// and Upper are the raw signed bounds on Current-Initial (e.g. lower: -100,
// upper: 100 for a symmetric window), matching tail.PaymentWindow exactly.
type PaymentWindowOptions struct {
	Lower int64 `yaml:"lower"`
	Upper int64 `yaml:"upper"`
}

// ServerOptions are the broker-side parameters names under RunOptions.
type ServerOptions struct {
	Region        mplex.Region `yaml:"region"`
	WriteCapacity float64      `yaml:"writeCapacity"`
	ReadCapacity  float64      `yaml:"readCapacity"`
	Concurrency   int          `yaml:"concurrency"`
	OutCapBytes   int          `yaml:"outCapBytes"`
	InCapBytes    int          `yaml:"inCapBytes"`
}

// RunOptions configures one simulation run.
type RunOptions struct {
	SlotLength      float64               `yaml:"slotLength"`
	SettlementDelay int                   `yaml:"settlementDelay"` // slots
	PaymentWindow   *PaymentWindowOptions `yaml:"paymentWindow,omitempty"`
	Server          ServerOptions         `yaml:"server"`
}

// RegionLinkOptions is one YAML-described direct region-to-region
// latency edge, fed into mplex.NewRegionTable.
type RegionLinkOptions struct {
	A       mplex.Region `yaml:"a"`
	B       mplex.Region `yaml:"b"`
	Latency float64      `yaml:"latency"` // seconds
}

// Config is the top-level document a run's YAML file contains.
type Config struct {
	Prepare      PrepareOptions      `yaml:"prepare"`
	Run          RunOptions          `yaml:"run"`
	RegionLinks  []RegionLinkOptions `yaml:"regionLinks"`
}

// Load reads and parses a Config from filename.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("simconfig: read %q: %w", filename, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("simconfig: parse %q: %w", filename, err)
	}
	return &cfg, nil
}

// RegionTable builds the mplex.RegionTable described by cfg.RegionLinks.
func (c *Config) RegionTable() *mplex.RegionTable {
	links := make([]mplex.RegionLink, len(c.RegionLinks))
	for i, l := range c.RegionLinks {
		links[i] = mplex.RegionLink{A: l.A, B: l.B, Latency: l.Latency}
	}
	return mplex.NewRegionTable(links)
}

// ClientServerLatency resolves the one-way latency a driver should use for
// every client-server link, as the shortest path between
// Prepare.ClientRegion and Run.Server.Region over RegionTable().
func (c *Config) ClientServerLatency() (float64, error) {
	return c.RegionTable().Latency(c.Prepare.ClientRegion, c.Run.Server.Region)
}

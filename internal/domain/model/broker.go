package model

import "sort"

// BrokerCatalog maps a broker name to its ordered list of server names.
type BrokerCatalog map[string][]string

// Brokers returns the broker names in alphabetical order.
func (c BrokerCatalog) Brokers() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Servers returns the servers offered by broker, or nil if the broker is unknown.
func (c BrokerCatalog) Servers(broker string) []string {
	servers, ok := c[broker]
	if !ok {
		return nil
	}
	out := make([]string, len(servers))
	copy(out, servers)
	return out
}

// HasServer reports whether server is listed under broker.
func (c BrokerCatalog) HasServer(broker, server string) bool {
	for _, s := range c[broker] {
		if s == server {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the catalog.
func (c BrokerCatalog) Clone() BrokerCatalog {
	out := make(BrokerCatalog, len(c))
	for name, servers := range c {
		cp := make([]string, len(servers))
		copy(cp, servers)
		out[name] = cp
	}
	return out
}

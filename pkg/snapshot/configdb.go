package snapshot

import (
	"context"
	"fmt"
	"net/netip"
	"sort"
	"strconv"
	"strings"

	"github.com/go-redis/redis/v8"

	"github.com/newtron-network/sessioncheck/pkg/model"
	"github.com/newtron-network/sessioncheck/pkg/util"
)

const (
	// ConfigDBIndex is the Redis database number of SONiC CONFIG_DB
	ConfigDBIndex = 4

	// DefaultRedisPort is where SONiC's Redis listens on the device
	DefaultRedisPort = 6379
)

// CONFIG_DB tables that contribute to a node's session configuration
const (
	tableDeviceMetadata    = "DEVICE_METADATA"
	tablePort              = "PORT"
	tablePortChannel       = "PORTCHANNEL"
	tableVLAN              = "VLAN"
	tableVRF               = "VRF"
	tableInterface         = "INTERFACE"
	tablePortChannelIntf   = "PORTCHANNEL_INTERFACE"
	tableVLANInterface     = "VLAN_INTERFACE"
	tableLoopbackInterface = "LOOPBACK_INTERFACE"
	tableBGPGlobals        = "BGP_GLOBALS"
	tableBGPNeighbor       = "BGP_NEIGHBOR"
	tableBGPPeerGroup      = "BGP_PEER_GROUP"
	tableBGPListenPrefix   = "BGP_GLOBALS_LISTEN_PREFIX"
	tableOSPFRouter        = "OSPFV2_ROUTER"
	tableOSPFInterface     = "OSPFV2_INTERFACE"
	tableOSPFPassiveIntf   = "OSPFV2_ROUTER_PASSIVE_INTERFACE"
)

// configDBTables lists every table read from a device
var configDBTables = []string{
	tableDeviceMetadata, tablePort, tablePortChannel, tableVLAN, tableVRF,
	tableInterface, tablePortChannelIntf, tableVLANInterface, tableLoopbackInterface,
	tableBGPGlobals, tableBGPNeighbor, tableBGPPeerGroup, tableBGPListenPrefix,
	tableOSPFRouter, tableOSPFInterface, tableOSPFPassiveIntf,
}

// Tables is a raw CONFIG_DB dump: table -> key -> field -> value.
// Keys are the part of the Redis key after "TABLE|".
type Tables map[string]map[string]map[string]string

// Set records one hash entry
func (t Tables) Set(table, key string, fields map[string]string) {
	if t[table] == nil {
		t[table] = make(map[string]map[string]string)
	}
	t[table][key] = fields
}

// ConfigDBClient reads session configuration from a SONiC CONFIG_DB
type ConfigDBClient struct {
	client *redis.Client
}

// NewConfigDBClient creates a new config_db client
func NewConfigDBClient(addr string) *ConfigDBClient {
	return &ConfigDBClient{
		client: redis.NewClient(&redis.Options{
			Addr: addr,
			DB:   ConfigDBIndex,
		}),
	}
}

// Connect tests the connection
func (c *ConfigDBClient) Connect(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the connection
func (c *ConfigDBClient) Close() error {
	return c.client.Close()
}

// ReadTables dumps the tables relevant to session analysis
func (c *ConfigDBClient) ReadTables(ctx context.Context) (Tables, error) {
	tables := make(Tables)
	for _, table := range configDBTables {
		keys, err := c.client.Keys(ctx, table+"|*").Result()
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", table, err)
		}
		for _, key := range keys {
			vals, err := c.client.HGetAll(ctx, key).Result()
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", key, err)
			}
			tables.Set(table, strings.TrimPrefix(key, table+"|"), vals)
		}
	}
	return tables, nil
}

// ReadNode reads CONFIG_DB and converts it into a node. fallbackHostname is
// used when DEVICE_METADATA carries no hostname.
func (c *ConfigDBClient) ReadNode(ctx context.Context, fallbackHostname string) (*model.Node, error) {
	tables, err := c.ReadTables(ctx)
	if err != nil {
		return nil, &util.SourceError{Op: "read config_db", Device: fallbackHostname, Err: err}
	}
	node, err := NodeFromTables(fallbackHostname, tables)
	if err != nil {
		return nil, &util.SourceError{Op: "parse config_db", Device: fallbackHostname, Err: err}
	}
	return node, nil
}

// NodeFromTables builds a node from a CONFIG_DB dump. Malformed entries are
// collected into a single validation error.
func NodeFromTables(fallbackHostname string, t Tables) (*model.Node, error) {
	hostname := t[tableDeviceMetadata]["localhost"]["hostname"]
	if hostname == "" {
		hostname = fallbackHostname
	}
	b := &nodeBuilder{
		node:  &model.Node{Hostname: hostname},
		t:     t,
		v:     &util.ValidationBuilder{},
		ifVRF: make(map[string]string),
	}

	b.node.VRF(model.DefaultVRF)
	for name := range t[tableVRF] {
		b.node.VRF(name)
	}

	b.interfaces()
	b.bgp()
	b.ospf()

	if err := b.v.Build(); err != nil {
		return nil, err
	}
	return b.node, nil
}

type nodeBuilder struct {
	node  *model.Node
	t     Tables
	v     *util.ValidationBuilder
	ifVRF map[string]string
}

// splitKey splits "a|b" into its parts; single-part keys return ok=false
func splitKey(key string) (string, string, bool) {
	a, b, ok := strings.Cut(key, "|")
	return a, b, ok
}

func sortedTableKeys(entries map[string]map[string]string) []string {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (b *nodeBuilder) vrfOf(fields map[string]string) string {
	if name := fields["vrf_name"]; name != "" {
		return name
	}
	return model.DefaultVRF
}

// interfaces reads the routed-interface tables. The base entry ("Ethernet0")
// carries vrf_name, the "Ethernet0|10.1.1.0/31" entries carry addresses.
func (b *nodeBuilder) interfaces() {
	routed := []struct {
		table    string
		loopback bool
	}{
		{tableInterface, false},
		{tablePortChannelIntf, false},
		{tableVLANInterface, false},
		{tableLoopbackInterface, true},
	}

	for _, r := range routed {
		entries := b.t[r.table]
		for _, key := range sortedTableKeys(entries) {
			if _, _, ok := splitKey(key); !ok {
				b.ifVRF[key] = b.vrfOf(entries[key])
			}
		}
		for _, key := range sortedTableKeys(entries) {
			name, addr, ok := splitKey(key)
			if !ok {
				b.iface(name, r.loopback)
				continue
			}
			p, err := netip.ParsePrefix(addr)
			if err != nil {
				b.v.AddErrorf("%s|%s: %v", r.table, key, err)
				continue
			}
			iface := b.iface(name, r.loopback)
			iface.Addresses = append(iface.Addresses, p)
		}
	}
}

func (b *nodeBuilder) iface(name string, loopback bool) *model.Interface {
	vrf := b.node.VRF(b.interfaceVRF(name))
	if iface := vrf.Interface(name); iface != nil {
		return iface
	}
	iface := &model.Interface{
		Name:        name,
		Description: b.describe(name),
		Active:      loopback || b.adminUp(name),
		Loopback:    loopback,
	}
	vrf.AddInterface(iface)
	return iface
}

func (b *nodeBuilder) interfaceVRF(name string) string {
	if vrf, ok := b.ifVRF[name]; ok {
		return vrf
	}
	return model.DefaultVRF
}

// adminUp treats a missing admin_status as up
func (b *nodeBuilder) adminUp(name string) bool {
	for _, table := range []string{tablePort, tablePortChannel, tableVLAN} {
		if fields, ok := b.t[table][name]; ok {
			status := fields["admin_status"]
			return status == "" || status == "up"
		}
	}
	return true
}

func (b *nodeBuilder) describe(name string) string {
	for _, table := range []string{tablePort, tablePortChannel, tableVLAN} {
		if d := b.t[table][name]["description"]; d != "" {
			return d
		}
	}
	return ""
}

func (b *nodeBuilder) parseAS(where, s string) uint32 {
	if s == "" {
		return 0
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		b.v.AddErrorf("%s: invalid AS number %q", where, s)
		return 0
	}
	return uint32(n)
}

// neighborVRF splits frrcfgd "vrf|peer" keys; legacy keys are bare peers
func neighborVRF(key string) (vrf, rest string) {
	if v, r, ok := splitKey(key); ok {
		return v, r
	}
	return model.DefaultVRF, key
}

func (b *nodeBuilder) bgp() {
	for _, key := range sortedTableKeys(b.t[tableBGPGlobals]) {
		fields := b.t[tableBGPGlobals][key]
		b.node.VRF(key).BGP = &model.BGPProcess{
			LocalAS:  b.parseAS(tableBGPGlobals+"|"+key, fields["local_asn"]),
			RouterID: fields["router_id"],
		}
	}

	for _, key := range sortedTableKeys(b.t[tableBGPNeighbor]) {
		fields := b.t[tableBGPNeighbor][key]
		vrfName, peer := neighborVRF(key)
		where := tableBGPNeighbor + "|" + key

		addr, err := netip.ParseAddr(peer)
		if err != nil {
			// unnumbered (interface) neighbors have no address to resolve
			util.WithNode(b.node.Hostname).Debugf("skipping %s: not an address", where)
			continue
		}
		group := b.peerGroup(vrfName, fields["peer_group"])
		n := &model.BGPNeighbor{
			Peer:         netip.PrefixFrom(addr, addr.BitLen()),
			RemoteAS:     b.parseAS(where, inherit(fields, group, "asn")),
			LocalAS:      b.parseAS(where, fields["local_asn"]),
			PeerGroup:    fields["peer_group"],
			Description:  fields["name"],
			EBGPMultihop: multihop(inherit(fields, group, "ebgp_multihop")),
		}
		b.localAddr(n, inherit(fields, group, "local_addr"))
		b.process(vrfName).AddNeighbor(n)
	}

	for _, key := range sortedTableKeys(b.t[tableBGPListenPrefix]) {
		fields := b.t[tableBGPListenPrefix][key]
		vrfName, prefix := neighborVRF(key)
		where := tableBGPListenPrefix + "|" + key

		p, err := netip.ParsePrefix(prefix)
		if err != nil {
			b.v.AddErrorf("%s: %v", where, err)
			continue
		}
		group := b.peerGroup(vrfName, fields["peer_group"])
		n := &model.BGPNeighbor{
			Peer:         p,
			RemoteAS:     b.parseAS(where, group["asn"]),
			PeerGroup:    fields["peer_group"],
			EBGPMultihop: multihop(group["ebgp_multihop"]),
		}
		b.localAddr(n, group["local_addr"])
		b.process(vrfName).AddNeighbor(n)
	}
}

func (b *nodeBuilder) process(vrfName string) *model.BGPProcess {
	vrf := b.node.VRF(vrfName)
	if vrf.BGP == nil {
		vrf.BGP = &model.BGPProcess{}
	}
	return vrf.BGP
}

func (b *nodeBuilder) peerGroup(vrfName, name string) map[string]string {
	if name == "" {
		return nil
	}
	if g, ok := b.t[tableBGPPeerGroup][vrfName+"|"+name]; ok {
		return g
	}
	return b.t[tableBGPPeerGroup][name]
}

// localAddr accepts either an address or an update-source interface name
func (b *nodeBuilder) localAddr(n *model.BGPNeighbor, s string) {
	if s == "" {
		return
	}
	if a, err := netip.ParseAddr(s); err == nil {
		n.LocalAddress = a
		return
	}
	n.UpdateSource = s
}

func inherit(fields, group map[string]string, name string) string {
	if v := fields[name]; v != "" {
		return v
	}
	return group[name]
}

func multihop(s string) bool {
	switch strings.ToLower(s) {
	case "", "0", "false", "disabled":
		return false
	}
	return true
}

// ospf reads OSPFV2_ROUTER ("vrf") and OSPFV2_INTERFACE ("ifname|addr")
func (b *nodeBuilder) ospf() {
	for _, key := range sortedTableKeys(b.t[tableOSPFRouter]) {
		b.node.VRF(key).OSPF = &model.OSPFProcess{
			RouterID:   b.t[tableOSPFRouter][key]["router-id"],
			Interfaces: make(map[string]*model.OSPFInterface),
		}
	}

	passive := make(map[string]bool)
	for key := range b.t[tableOSPFPassiveIntf] {
		// "vrf|ifname|addr"
		_, rest := neighborVRF(key)
		name, _, _ := splitKey(rest)
		passive[name] = true
	}

	for _, key := range sortedTableKeys(b.t[tableOSPFInterface]) {
		fields := b.t[tableOSPFInterface][key]
		name, _, _ := splitKey(key)
		where := tableOSPFInterface + "|" + key

		vrf := b.node.VRF(b.interfaceVRF(name))
		if vrf.OSPF == nil {
			vrf.OSPF = &model.OSPFProcess{Interfaces: make(map[string]*model.OSPFInterface)}
		}
		oi := &model.OSPFInterface{
			Area:    fields["area-id"],
			Passive: passive[name] || fields["passive"] == "true",
		}
		if s := fields["metric"]; s != "" {
			cost, err := strconv.Atoi(s)
			if err != nil {
				b.v.AddErrorf("%s: invalid metric %q", where, s)
			}
			oi.Cost = cost
		}
		vrf.OSPF.Interfaces[name] = oi
	}
}

package report

import (
	"bufio"
	"fmt"
	"io"

	"github.com/newtron-network/sessioncheck/pkg/classify"
	"github.com/newtron-network/sessioncheck/pkg/session"
)

// WriteText renders every non-empty category as an indented
// category → host → vrf → session listing.
func WriteText(w io.Writer, r *Report) error {
	bw := bufio.NewWriter(w)
	for _, c := range r.Categories() {
		WriteCategory(bw, r, c)
	}
	return bw.Flush()
}

// WriteCategory renders one category; nothing is written for an empty one
func WriteCategory(w io.Writer, r *Report, c classify.Category) {
	entries := r.Entries(c)
	if len(entries) == 0 {
		return
	}
	fmt.Fprintf(w, "%s:\n", c)
	var host, vrf string
	for _, e := range entries {
		if e.Hostname != host {
			host, vrf = e.Hostname, ""
			fmt.Fprintf(w, "  %s:\n", host)
		}
		if e.VRF != vrf {
			vrf = e.VRF
			fmt.Fprintf(w, "    %s:\n", vrf)
		}
		fmt.Fprintf(w, "      %s\n", SessionLine(e.Session))
	}
}

// SessionLine formats the peer metadata of one session
func SessionLine(s classify.Session) string {
	d := s.Declaration
	local := "-"
	if d.HasLocal() {
		local = d.Local.String()
	}

	switch p := d.Payload.(type) {
	case session.BGPPayload:
		return fmt.Sprintf("remoteIp: %-18s   remoteAs: %-5d   localIp: %-15s   localAs: %-5d   group: %s   desc: %s",
			d.Remote, p.RemoteAS, local, p.LocalAS, d.PeerGroup, d.Description)
	case session.OSPFPayload:
		return fmt.Sprintf("remoteIp: %-18s   localIp: %-15s   interface: %s   area: %s   cost: %d",
			d.Remote, local, p.Interface, p.Area, p.Cost)
	case session.IPsecPayload:
		return fmt.Sprintf("remoteIp: %-18s   localIp: %-15s   vpn: %s", d.Remote, local, d.Name)
	}
	return fmt.Sprintf("remoteIp: %-18s   localIp: %-15s   %s", d.Remote, local, d.Name)
}

package domain

// Container represents a running container as reported by the runtime (Docker SDK or CLI).
type Container struct {
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	Image  string        `json:"image"`
	Status string        `json:"status"`
	State  string        `json:"state"` // running, exited, etc.
	Ports  []PortBinding `json:"ports"`
}

// PortBinding is one published port: HostIP:HostPort on the host forwards to
// ContainerPort inside the container.
type PortBinding struct {
	HostIP        string `json:"host_ip"`
	HostPort      int    `json:"host_port"`
	ContainerPort int    `json:"container_port"`
	Protocol      string `json:"protocol"` // tcp, udp, sctp
}

// Published reports whether the binding is reachable from the host at all.
// Exposed-but-unpublished ports come back from the runtime with HostPort 0.
func (b PortBinding) Published() bool {
	return b.HostPort > 0
}

// ExecResult is the raw outcome of one command executed inside a container.
type ExecResult struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

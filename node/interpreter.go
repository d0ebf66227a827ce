package node

import (
	"github.com/temoto/growbox/hardware/relay"
	"github.com/temoto/growbox/protocol"
)

// Dispatch executes one inbound message. Unknown text is ignored without reply.
// At most one actuator write and one send.
func (n *Node) Dispatch(line string) {
	cmd := protocol.ParseCommand(line)
	n.metrics.Commands.WithLabelValues(cmd.String()).Inc()

	switch cmd {
	case protocol.CommandMacAck:
		// late ack of dead session must not open the gate for next one
		if !n.transport.Connected() {
			n.log.Debugf("ignored MAC_ACK while disconnected")
			return
		}
		n.Session.HandshakeAcknowledged = true
		n.log.Infof("handshake acknowledged")

	case protocol.CommandLightOn, protocol.CommandLightOff:
		on := cmd == protocol.CommandLightOn
		if _, ok := n.setActuator(relay.Light, on); ok {
			n.out.send(KindAck, protocol.FormatLightAck(on))
		}

	case protocol.CommandHumOn, protocol.CommandHumOff:
		on := cmd == protocol.CommandHumOn
		if level, ok := n.setActuator(relay.Humidifier, on); ok {
			n.out.send(KindAck, protocol.FormatRelayAck(on, level))
		}

	case protocol.CommandFanOn, protocol.CommandFanOff:
		on := cmd == protocol.CommandFanOn
		if level, ok := n.setActuator(relay.Fan, on); ok {
			n.out.send(KindAck, protocol.FormatRelayAck(on, level))
		}

	default:
		n.log.Debugf("ignored line=%q", line)
	}
}

func (n *Node) setActuator(id relay.ID, on bool) (bool, bool) {
	level, err := n.Actuators.Set(id, on)
	if err != nil {
		n.log.Errorf("command %s=%t err=%v", id, on, err)
		return level, false
	}
	n.metrics.Actuator.WithLabelValues(id.String()).Set(b2f(level))
	if level != on {
		n.log.Infof("command %s=%t readback=%t", id, on, level)
	} else {
		n.log.Infof("command %s=%t", id, on)
	}
	return level, true
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

package messaging

import (
	"log"

	"fleetcore/grid"
)

// Robot commands.
const (
	CommandMove   = "move"
	CommandStop   = "stop"
	CommandWait   = "wait"
	CommandResume = "resume"
)

// CommandPublisher sends robot commands to per-robot command topics.
// Delivery is best-effort: command topics are live control, not
// store-and-forward, so failures are logged and the safety recheck loop
// catches robots that missed a stop.
type CommandPublisher struct {
	client *Client
	prefix string
	sender string
}

func NewCommandPublisher(client *Client, prefix, sender string) *CommandPublisher {
	return &CommandPublisher{client: client, prefix: prefix, sender: sender}
}

func (p *CommandPublisher) SendMove(robotID string, points []grid.Position) {
	p.send(robotID, RobotCommand{RobotID: robotID, Command: CommandMove, Points: toPathPoints(points)})
}

func (p *CommandPublisher) SendStop(robotID string) {
	p.send(robotID, RobotCommand{RobotID: robotID, Command: CommandStop})
}

func (p *CommandPublisher) SendWait(robotID string) {
	p.send(robotID, RobotCommand{RobotID: robotID, Command: CommandWait})
}

func (p *CommandPublisher) SendResume(robotID string) {
	p.send(robotID, RobotCommand{RobotID: robotID, Command: CommandResume})
}

func (p *CommandPublisher) send(robotID string, cmd RobotCommand) {
	env := NewEnvelope("robot_command", p.sender, cmd)
	topic := CommandTopic(p.prefix, robotID)
	if err := p.client.PublishEnvelope(topic, env); err != nil {
		log.Printf("commands: publish %s to %s: %v", cmd.Command, topic, err)
	}
}

func toPathPoints(points []grid.Position) []PathPoint {
	out := make([]PathPoint, len(points))
	for i, pt := range points {
		out[i] = PathPoint{X: pt.X, Y: pt.Y, Heading: pt.Heading, Stamp: pt.Stamp}
	}
	return out
}

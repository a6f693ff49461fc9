package notify

import "strings"

// Channel is the delivery medium requested for an intent.
type Channel int

const (
	ChannelEmail Channel = iota
	ChannelInApp
	ChannelSlack
	ChannelTeams
	ChannelWebhook

	channelCount // keep last
)

// channelInvalid marks a channel name that did not parse.
const channelInvalid Channel = -1

var channelNames = [channelCount]string{
	ChannelEmail:   "email",
	ChannelInApp:   "in_app",
	ChannelSlack:   "slack",
	ChannelTeams:   "teams",
	ChannelWebhook: "webhook",
}

func (c Channel) String() string {
	if c < 0 || c >= channelCount {
		return "unknown"
	}
	return channelNames[c]
}

// ParseChannel accepts names case-insensitively ("EMAIL", "in_app", "IN-APP").
func ParseChannel(s string) (Channel, bool) {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for c, n := range channelNames {
		if n == name {
			return Channel(c), true
		}
	}
	return channelInvalid, false
}

type branch int

const (
	branchEmail branch = iota
	branchInApp
)

type route struct {
	branch   branch
	fallback bool
}

// routes maps every channel to its sending branch. Slack, Teams and webhooks
// have no sender and are delivered in-app.
var routes = [...]route{
	ChannelEmail:   {branch: branchEmail},
	ChannelInApp:   {branch: branchInApp},
	ChannelSlack:   {branch: branchInApp, fallback: true},
	ChannelTeams:   {branch: branchInApp, fallback: true},
	ChannelWebhook: {branch: branchInApp, fallback: true},
}

// Adding a channel without a route fails to compile here.
var _ [channelCount]route = routes

func routeFor(c Channel) (route, bool) {
	if c < 0 || c >= channelCount {
		return route{}, false
	}
	return routes[c], true
}

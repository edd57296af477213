package events

import (
	"math/bits"

	"github.com/tsarna/obsws/pkg/obsws/protocol"
)

// UnknownCategory is used for events whose intent has no known bit set.
const UnknownCategory = "unknown"

var categories = map[uint32]string{
	protocol.SubscriptionGeneral:                   "general",
	protocol.SubscriptionConfig:                    "config",
	protocol.SubscriptionScenes:                    "scenes",
	protocol.SubscriptionInputs:                    "inputs",
	protocol.SubscriptionTransitions:               "transitions",
	protocol.SubscriptionFilters:                   "filters",
	protocol.SubscriptionOutputs:                   "outputs",
	protocol.SubscriptionSceneItems:                "sceneitems",
	protocol.SubscriptionMediaInputs:               "mediainputs",
	protocol.SubscriptionVendors:                   "vendors",
	protocol.SubscriptionUI:                        "ui",
	protocol.SubscriptionInputVolumeMeters:         "inputvolumemeters",
	protocol.SubscriptionInputActiveStateChanged:   "inputactivestatechanged",
	protocol.SubscriptionInputShowStateChanged:     "inputshowstatechanged",
	protocol.SubscriptionSceneItemTransformChanged: "sceneitemtransformchanged",
}

// Category names the lowest subscription bit set in intent.
func Category(intent uint32) string {
	if intent == 0 {
		return UnknownCategory
	}
	bit := uint32(1) << bits.TrailingZeros32(intent)
	if name, ok := categories[bit]; ok {
		return name
	}
	return UnknownCategory
}

// Topic returns "<category>/<eventType>" for ev.
func Topic(ev *protocol.Event) string {
	return Category(ev.EventIntent) + "/" + ev.EventType
}

// Subscription returns the subscription bit for a category name as used in
// topics. "all" and "none" are also accepted.
func Subscription(name string) (uint32, bool) {
	switch name {
	case "all":
		return protocol.SubscriptionAll, true
	case "none":
		return protocol.SubscriptionNone, true
	}
	for bit, category := range categories {
		if category == name {
			return bit, true
		}
	}
	return 0, false
}

package protocol

// Event subscription bits sent in Identify and Reidentify. The server only
// delivers events whose intent is in the subscribed mask.
const (
	SubscriptionNone        uint32 = 0
	SubscriptionGeneral     uint32 = 1 << 0
	SubscriptionConfig      uint32 = 1 << 1
	SubscriptionScenes      uint32 = 1 << 2
	SubscriptionInputs      uint32 = 1 << 3
	SubscriptionTransitions uint32 = 1 << 4
	SubscriptionFilters     uint32 = 1 << 5
	SubscriptionOutputs     uint32 = 1 << 6
	SubscriptionSceneItems  uint32 = 1 << 7
	SubscriptionMediaInputs uint32 = 1 << 8
	SubscriptionVendors     uint32 = 1 << 9
	SubscriptionUI          uint32 = 1 << 10

	// SubscriptionAll is every non high-volume category.
	SubscriptionAll = SubscriptionGeneral | SubscriptionConfig | SubscriptionScenes |
		SubscriptionInputs | SubscriptionTransitions | SubscriptionFilters |
		SubscriptionOutputs | SubscriptionSceneItems | SubscriptionMediaInputs |
		SubscriptionVendors | SubscriptionUI

	// High-volume categories, only delivered when asked for explicitly.
	SubscriptionInputVolumeMeters         uint32 = 1 << 16
	SubscriptionInputActiveStateChanged   uint32 = 1 << 17
	SubscriptionInputShowStateChanged     uint32 = 1 << 18
	SubscriptionSceneItemTransformChanged uint32 = 1 << 19

	// DefaultSubscriptions is General and Filters.
	DefaultSubscriptions = SubscriptionGeneral | SubscriptionFilters
)

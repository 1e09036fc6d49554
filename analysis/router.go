package analysis

import "github.com/sirupsen/logrus"

// DecideBackend selects the classification backend for an analysis run. It
// is a pure function over the routing snapshot with no side effects beyond
// logging. The priority order encodes business policy and must not be
// reordered: paid multi-agent beats paid single-agent beats free on-device
// beats the forced cloud fallback. The final branch returns the cloud
// single-agent backend even without a subscription; the caller is
// responsible for surfacing the subscription requirement elsewhere.
func DecideBackend(config RoutingConfig) Backend {
	logger := log.WithFields(logrus.Fields{
		"agentic":      config.UseAgenticAnalysis,
		"subscription": config.HasCloudSubscription,
		"cloud":        config.UseCloudAnalysis,
		"on_device":    config.OnDeviceModelAvailable,
	})

	switch {
	case config.UseAgenticAnalysis && config.HasCloudSubscription:
		logger.Debug("Routing to cloud multi-agent backend")
		return BackendCloudMultiAgent
	case config.UseCloudAnalysis && config.HasCloudSubscription:
		logger.Debug("Routing to cloud single-agent backend")
		return BackendCloudSingle
	case config.OnDeviceModelAvailable:
		logger.Debug("Routing to on-device backend")
		return BackendOnDevice
	default:
		logger.Debug("No backend preference satisfied, falling back to cloud single-agent")
		return BackendCloudSingle
	}
}

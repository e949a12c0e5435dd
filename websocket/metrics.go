// file: websocket/metrics.go
package websocket

import (
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/cloudwatch"

	"ams-relay/logger"
)

// Namespace for all relay metrics
var metricsNamespace = "AMSRelay"

// metricsEnabled gates CloudWatch calls; main turns it on when AWS config is
// present so local runs and tests never touch the network.
var metricsEnabled = false

// Reuse a single CloudWatch client for all metrics calls
var cwClient *cloudwatch.CloudWatch

// EnableMetrics switches CloudWatch publishing on.
func EnableMetrics() {
	cwClient = cloudwatch.New(session.Must(session.NewSession()))
	metricsEnabled = true
}

// PublishDeviceConnections pushes the current device connection count.
func PublishDeviceConnections(count int) {
	putMetric("DeviceConnections", float64(count), "Count")
}

// PublishWebClientConnections pushes the current web client count.
func PublishWebClientConnections(count int) {
	putMetric("WebClientConnections", float64(count), "Count")
}

// PublishDispatchFailure counts commands addressed to absent devices.
func PublishDispatchFailure(deviceID string) {
	putMetric("DispatchFailures", 1, "Count")
	logger.Debug.Printf("[PublishDispatchFailure] deviceId=%s", deviceID)
}

// -----------------------------------------------------------
// internal helper function to package up CloudWatch calls
// -----------------------------------------------------------
func putMetric(metricName string, value float64, unit string) {
	if !metricsEnabled || cwClient == nil {
		return
	}
	_, err := cwClient.PutMetricData(&cloudwatch.PutMetricDataInput{
		Namespace: aws.String(metricsNamespace),
		MetricData: []*cloudwatch.MetricDatum{
			{
				MetricName: aws.String(metricName),
				Timestamp:  aws.Time(time.Now()),
				Value:      aws.Float64(value),
				Unit:       aws.String(unit),
			},
		},
	})
	if err != nil {
		logger.Error.Printf("[putMetric] CloudWatch metric failed (%s): %v", metricName, err)
	}
}

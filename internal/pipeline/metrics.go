package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	imagesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bannerscan_images_processed_total",
			Help: "Number of images processed by outcome",
		},
		[]string{"status"},
	)

	imageDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bannerscan_image_duration_seconds",
			Help:    "Time spent processing one image",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	detectionsPerImage = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bannerscan_detections_per_image",
			Help:    "Retained detections per successfully processed image",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
		[]string{"category"},
	)

	detectorFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bannerscan_detector_failures_total",
			Help: "Number of failed or timed out detector invocations",
		},
		[]string{"capability"},
	)
)

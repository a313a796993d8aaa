package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// questionsTotal counts served questions by outcome (answered, fallback).
	questionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragtutor",
			Subsystem: "service",
			Name:      "questions_total",
			Help:      "Questions served, labeled by outcome (answered or fallback)",
		},
		[]string{"outcome"},
	)

	// questionDuration tracks the full question round trip including the
	// model call.
	questionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ragtutor",
			Subsystem: "service",
			Name:      "question_duration_seconds",
			Help:      "Duration of full question round trips in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// indexedVectors reports how many vectors each collection holds.
	indexedVectors = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "ragtutor",
			Subsystem: "index",
			Name:      "vectors",
			Help:      "Vectors currently held per collection (text, image)",
		},
		[]string{"collection"},
	)

	// modelRequests counts language model calls by result.
	modelRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragtutor",
			Subsystem: "llm",
			Name:      "requests_total",
			Help:      "Language model requests, labeled by result (success or error)",
		},
		[]string{"result"},
	)
)

package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"assignment_service/internal/service"
	"assignment_service/pkg/logger"
)

// ReminderWorker periodically scans for assignments due inside the
// configured window and publishes one reminder per unfinished student.
type ReminderWorker struct {
	assignments *service.AssignmentService
	producer    service.EventProducer
	interval    time.Duration
	dueWindow   time.Duration
	log         *logger.Logger
}

func NewReminderWorker(
	assignments *service.AssignmentService,
	producer service.EventProducer,
	interval, dueWindow time.Duration,
	log *logger.Logger,
) *ReminderWorker {
	return &ReminderWorker{
		assignments: assignments,
		producer:    producer,
		interval:    interval,
		dueWindow:   dueWindow,
		log:         log,
	}
}

func (w *ReminderWorker) Run(ctx context.Context) {
	w.log.Info("Starting reminder worker",
		zap.Duration("interval", w.interval),
		zap.Duration("due_window", w.dueWindow),
	)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Reminder worker shutting down")
			return
		case <-ticker.C:
			w.assignments.DueSoonReminders(ctx, w.dueWindow, w.producer)
		}
	}
}

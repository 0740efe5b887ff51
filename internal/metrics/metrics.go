package metrics

import (
	"sync/atomic"
)

type Collector struct {
	ordersProcessed int64
	ordersRejected  int64
	ordersFailed    int64
	alertsFired     int64
	alertsDelivered int64
	alertsDead      int64
}

func New() *Collector {
	return &Collector{}
}

func (c *Collector) RecordOrderProcessed() {
	atomic.AddInt64(&c.ordersProcessed, 1)
}

func (c *Collector) RecordOrderRejected() {
	atomic.AddInt64(&c.ordersRejected, 1)
}

func (c *Collector) RecordOrderFailed() {
	atomic.AddInt64(&c.ordersFailed, 1)
}

func (c *Collector) RecordAlertFired() {
	atomic.AddInt64(&c.alertsFired, 1)
}

func (c *Collector) RecordAlertDelivered() {
	atomic.AddInt64(&c.alertsDelivered, 1)
}

func (c *Collector) RecordAlertDead() {
	atomic.AddInt64(&c.alertsDead, 1)
}

func (c *Collector) GetOrdersProcessed() int64 {
	return atomic.LoadInt64(&c.ordersProcessed)
}

func (c *Collector) GetOrdersRejected() int64 {
	return atomic.LoadInt64(&c.ordersRejected)
}

func (c *Collector) GetOrdersFailed() int64 {
	return atomic.LoadInt64(&c.ordersFailed)
}

func (c *Collector) GetAlertsFired() int64 {
	return atomic.LoadInt64(&c.alertsFired)
}

func (c *Collector) GetAlertsDelivered() int64 {
	return atomic.LoadInt64(&c.alertsDelivered)
}

func (c *Collector) GetAlertsDead() int64 {
	return atomic.LoadInt64(&c.alertsDead)
}

func (c *Collector) GetAcceptanceRate() float64 {
	total := c.GetOrdersProcessed() + c.GetOrdersRejected() + c.GetOrdersFailed()
	if total == 0 {
		return 0
	}
	return float64(c.GetOrdersProcessed()) / float64(total) * 100
}

type Stats struct {
	OrdersProcessed int64   `json:"orders_processed"`
	OrdersRejected  int64   `json:"orders_rejected"`
	OrdersFailed    int64   `json:"orders_failed"`
	AlertsFired     int64   `json:"alerts_fired"`
	AlertsDelivered int64   `json:"alerts_delivered"`
	AlertsDead      int64   `json:"alerts_dead"`
	AcceptanceRate  float64 `json:"acceptance_rate_percent"`
}

func (c *Collector) GetStats() Stats {
	return Stats{
		OrdersProcessed: c.GetOrdersProcessed(),
		OrdersRejected:  c.GetOrdersRejected(),
		OrdersFailed:    c.GetOrdersFailed(),
		AlertsFired:     c.GetAlertsFired(),
		AlertsDelivered: c.GetAlertsDelivered(),
		AlertsDead:      c.GetAlertsDead(),
		AcceptanceRate:  c.GetAcceptanceRate(),
	}
}

func (c *Collector) Reset() {
	atomic.StoreInt64(&c.ordersProcessed, 0)
	atomic.StoreInt64(&c.ordersRejected, 0)
	atomic.StoreInt64(&c.ordersFailed, 0)
	atomic.StoreInt64(&c.alertsFired, 0)
	atomic.StoreInt64(&c.alertsDelivered, 0)
	atomic.StoreInt64(&c.alertsDead, 0)
}

// Package metric publishes expvar counters per node type.
package metric

import (
	"expvar"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"
)

const componentsLabel = "montage.nodes"

const (
	// FetchCounter measures number of served fetches.
	FetchCounter = "Fetches"
	// HitCounter measures number of fetches served from cache.
	HitCounter = "Hits"
	// UpstreamCounter measures number of fetches sent upstream.
	UpstreamCounter = "Upstream"
	// EvictionCounter measures number of evicted frames.
	EvictionCounter = "Evictions"
	// LatencyCounter measures latency between fetch calls.
	LatencyCounter = "Latency"
	// UpstreamDurationCounter accumulates time spent in upstream fetches.
	UpstreamDurationCounter = "UpstreamDuration"
	// ComponentCounter counts number of metered nodes.
	ComponentCounter = "Components"
)

var (
	components = metrics{
		m: make(map[string]metric),
	}

	counters = []string{
		FetchCounter,
		HitCounter,
		UpstreamCounter,
		EvictionCounter,
		LatencyCounter,
		UpstreamDurationCounter,
		ComponentCounter,
	}
)

// Get metrics values for provided component type.
func Get(component interface{}) map[string]string {
	return getCounters(getType(component))
}

// GetAll returns counters for all measured components.
func GetAll() map[string]map[string]string {
	m := make(map[string]map[string]string)
	components.Lock()
	defer components.Unlock()
	for component := range components.m {
		m[component] = getCounters(component)
	}
	return m
}

func getCounters(componentType string) map[string]string {
	m := make(map[string]string)
	for _, counter := range counters {
		v := expvar.Get(key(componentType, counter))
		if v != nil {
			m[counter] = v.String()
		}
	}
	return m
}

// Measure captures counters of a single node. All methods are safe for
// concurrent use, a nil Measure discards everything.
type Measure struct {
	metric
	calledAt int64
}

// Meter registers the component and returns its measure.
func Meter(component interface{}) *Measure {
	t := getType(component)
	metric := components.get(t)
	metric.components.Add(1)
	return &Measure{
		metric:   metric,
		calledAt: time.Now().UnixNano(),
	}
}

// Fetch captures a served fetch.
func (m *Measure) Fetch(hit bool) {
	if m == nil {
		return
	}
	now := time.Now().UnixNano()
	last := atomic.SwapInt64(&m.calledAt, now)
	m.latency.set(time.Duration(now - last))
	m.fetches.Add(1)
	if hit {
		m.hits.Add(1)
	}
}

// Upstream captures a fetch sent upstream and its duration.
func (m *Measure) Upstream(d time.Duration) {
	if m == nil {
		return
	}
	m.upstream.Add(1)
	m.upstreamDuration.add(d)
}

// Evict captures evicted frames.
func (m *Measure) Evict(n int) {
	if m == nil || n == 0 {
		return
	}
	m.evictions.Add(int64(n))
}

type metrics struct {
	sync.Mutex
	m map[string]metric
}

func (m *metrics) get(componentType string) metric {
	m.Lock()
	defer m.Unlock()
	if metric, ok := m.m[componentType]; ok {
		// return existing metric if available
		return metric
	}
	// create new metric
	metric := newMetric(componentType)
	m.m[componentType] = metric
	return metric
}

type metric struct {
	key              string
	components       *expvar.Int
	fetches          *expvar.Int
	hits             *expvar.Int
	upstream         *expvar.Int
	evictions        *expvar.Int
	latency          *duration
	upstreamDuration *duration
}

func newMetric(componentType string) metric {
	m := metric{
		key:              componentType,
		components:       expvar.NewInt(key(componentType, ComponentCounter)),
		fetches:          expvar.NewInt(key(componentType, FetchCounter)),
		hits:             expvar.NewInt(key(componentType, HitCounter)),
		upstream:         expvar.NewInt(key(componentType, UpstreamCounter)),
		evictions:        expvar.NewInt(key(componentType, EvictionCounter)),
		latency:          &duration{},
		upstreamDuration: &duration{},
	}
	expvar.Publish(key(componentType, LatencyCounter), m.latency)
	expvar.Publish(key(componentType, UpstreamDurationCounter), m.upstreamDuration)
	return m
}

func key(componentType, counter string) string {
	return fmt.Sprintf("%s.%s.%s", componentsLabel, componentType, counter)
}

func getType(component interface{}) string {
	rv := reflect.ValueOf(component)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		rv = rv.Elem()
	}
	return rv.Type().String()
}

// duration allows to format time.Duration metric values.
type duration struct {
	d int64
}

func (v *duration) String() string {
	return fmt.Sprintf("%q", time.Duration(atomic.LoadInt64(&v.d)).String())
}

func (v *duration) add(delta time.Duration) {
	atomic.AddInt64(&v.d, int64(delta))
}

func (v *duration) set(value time.Duration) {
	atomic.StoreInt64(&v.d, int64(value))
}

package task

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"k8s.io/utils/clock"
)

type task struct {
	function    func()
	interval    time.Duration
	metricName  string
	stopChannel chan bool
}

// BackgroundTaskManager is not threadsafe, it should only be accessed from a single thread.
type BackgroundTaskManager struct {
	tasks         []*task
	metricsPrefix string
	clock         clock.Clock
	wg            *sync.WaitGroup
}

func NewBackgroundTaskManager(metricsPrefix string) *BackgroundTaskManager {
	return NewBackgroundTaskManagerWithClock(metricsPrefix, clock.RealClock{})
}

func NewBackgroundTaskManagerWithClock(metricsPrefix string, clock clock.Clock) *BackgroundTaskManager {
	return &BackgroundTaskManager{
		tasks:         []*task{},
		metricsPrefix: metricsPrefix,
		clock:         clock,
		wg:            &sync.WaitGroup{},
	}
}

// Register starts running backgroundTask every interval. The first run happens one interval after
// registration, and each subsequent run is scheduled one interval after the previous one finished.
func (m *BackgroundTaskManager) Register(backgroundTask func(), interval time.Duration, metricName string) {
	task := &task{
		function:    backgroundTask,
		interval:    interval,
		metricName:  metricName,
		stopChannel: make(chan bool),
	}
	m.startBackgroundTask(task)
	m.tasks = append(m.tasks, task)
}

// StopAll stops every task and waits for any run in progress to finish. Returns true if the wait timed out.
func (m *BackgroundTaskManager) StopAll(timeout time.Duration) bool {
	m.stopTasks()
	return m.waitForShutdownCompletion(timeout)
}

func (m *BackgroundTaskManager) startBackgroundTask(task *task) {
	taskDurationHistogram := taskLatency(m.metricsPrefix + task.metricName + "_latency_seconds")

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for {
			select {
			case <-m.clock.After(task.interval):
			case <-task.stopChannel:
				return
			}
			start := m.clock.Now()
			task.function()
			taskDurationHistogram.Observe(m.clock.Since(start).Seconds())
		}
	}()
}

func (m *BackgroundTaskManager) waitForShutdownCompletion(timeout time.Duration) bool {
	c := make(chan struct{})
	go func() {
		defer close(c)
		m.wg.Wait()
	}()
	select {
	case <-c:
		return false // completed normally
	case <-time.After(timeout):
		return true // timed out
	}
}

func (m *BackgroundTaskManager) stopTasks() {
	for _, task := range m.tasks {
		close(task.stopChannel)
	}
	m.tasks = nil
}

var (
	histogramsLock sync.Mutex
	histograms     = map[string]prometheus.Histogram{}
)

// taskLatency returns the latency histogram with the given name, registering it on first use so that
// several managers may run tasks with the same name.
func taskLatency(name string) prometheus.Histogram {
	histogramsLock.Lock()
	defer histogramsLock.Unlock()
	if h, ok := histograms[name]; ok {
		return h
	}
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    name,
		Help:    "Background loop latency in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 15),
	})
	prometheus.MustRegister(h)
	histograms[name] = h
	return h
}

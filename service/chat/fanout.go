package chat

import "sync"

// ===== 广播扇出 =====

type fanoutJob struct {
	conns   []*Client
	payload []byte
}

// Fanout 固定大小的投递工作池。广播方只负责切块入队，
// 真正往每条连接的 Send 投递由 worker 完成。
type Fanout struct {
	jobs    chan fanoutJob
	wg      sync.WaitGroup
	once    sync.Once
	batchSz int
}

func NewFanout(workers, queue, batchSz int) *Fanout {
	if workers <= 0 {
		workers = 1
	}
	if batchSz <= 0 {
		batchSz = 64
	}
	f := &Fanout{
		jobs:    make(chan fanoutJob, queue),
		batchSz: batchSz,
	}
	for i := 0; i < workers; i++ {
		f.wg.Add(1)
		go f.worker()
	}
	return f
}

func (f *Fanout) worker() {
	defer f.wg.Done()
	for job := range f.jobs {
		for _, c := range job.conns {
			c.Enqueue(job.payload)
		}
	}
}

// Dispatch 把目标连接按批切块入队。队列满时在调用方阻塞，形成背压。
func (f *Fanout) Dispatch(conns []*Client, payload []byte) {
	for len(conns) > 0 {
		n := f.batchSz
		if n > len(conns) {
			n = len(conns)
		}
		f.jobs <- fanoutJob{conns: conns[:n], payload: payload}
		conns = conns[n:]
	}
}

// Close 等所有在途任务投递完再返回。
func (f *Fanout) Close() {
	f.once.Do(func() { close(f.jobs) })
	f.wg.Wait()
}

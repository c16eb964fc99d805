// Package poblado moves slow, incremental JSON processing off a cooperative
// event loop and hands the result back to the loop goroutine.
//
// The building blocks live in sub-packages:
//
//   - core: the single-goroutine EventLoop with idle handles
//   - tokenizer: the chunk-fed JSON tokenizer and its worker goroutine
//   - handoff: Gate, PollScheduler and the generic Task
//   - processors: ready-made processors
//
// # Quick Start
//
// Implement a Processor and let ProcessReader wire everything:
//
//	proc := processors.NewCapitalizer(10*time.Millisecond, nil)
//	outcome, err := poblado.ProcessReader(ctx, os.Stdin, proc, poblado.Options{ChunkSize: 64})
//	if err != nil {
//		return err
//	}
//	if outcome.Failed() {
//		fmt.Fprintln(os.Stderr, outcome.Err.Detail())
//	}
//
// # Driving the loop yourself
//
//	loop := poblado.NewEventLoop()
//	task := poblado.NewTask(loop, proc)
//	loop.PostTask(func(ctx context.Context) {
//		task.Write([]byte(`{"k1":"v1"}`))
//		task.Close()
//	})
//	_ = loop.Run(context.Background()) // returns after proc.OnComplete ran
//
// # Thread Safety
//
// Processor.OnToken and Processor.Transform run on the tokenizer's worker
// goroutine; Processor.OnComplete runs on the loop goroutine. Everything the
// worker wrote is visible in OnComplete without locks.
package poblado

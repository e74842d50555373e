// Command gcviz runs a few collection cycles over a synthetic object
// graph and renders one PNG frame per phase step, visualizing page
// states, liveness and the relocation set.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/oolong-gc/oolong"
)

var (
	fontPath = flag.String("font", "./RobotoMono-Regular.ttf", "path to a TTF font")
	outDir   = flag.String("out", "./img", "output directory for frames")
	cycles   = flag.Int("cycles", 3, "number of GC cycles to run")
	seed     = flag.Int64("seed", 1, "object graph seed")
)

func main() {
	flag.Parse()
	must(os.MkdirAll(*outDir, 0o755))

	heap, err := oolong.New(oolong.Config{
		MaxCapacity:    256 * oolong.GranuleSize,
		MinCapacity:    32 * oolong.GranuleSize,
		SmallPageSize:  8 * oolong.GranuleSize,
		MediumPageSize: 32 * oolong.GranuleSize,
		Workers:        2,
		ClassUnloading: true,
		StatSink:       oolong.NewMemoryStats(),
	})
	must(err)
	defer heap.Close()

	mut := heap.NewMutator()
	objs := seedGraph(heap, mut, rand.New(rand.NewSource(*seed)))

	frame := 0
	emit := func(phase string) {
		fname := filepath.Join(*outDir, fmt.Sprintf("cycle-%03d.png", frame))
		fmt.Println("generating", fname)
		must(Draw(snapshot(heap, phase)).SavePNG(fname))
		frame++
	}

	for c := range *cycles {
		// Churn the graph between cycles so there is garbage to
		// collect and movement to show.
		churn(heap, mut, objs, rand.New(rand.NewSource(*seed+int64(c)+1)))

		emit("before cycle")
		heap.Safepoint(heap.MarkStart)
		emit("mark start")
		heap.Mark()
		for !markEnd(heap) {
			heap.Mark()
		}
		emit("mark end")
		heap.ProcessNonStrongReferences()
		if heap.ShouldUnloadClass() {
			heap.Safepoint(heap.UnloadClass)
			heap.FinishNonStrongReferences()
		}
		heap.ResetRelocationSet()
		heap.SelectRelocationSet()
		emit("relocation set selected")
		heap.Safepoint(heap.RelocateStart)
		heap.Relocate()
		// Heal our handles while the forwardings are still installed.
		for i, addr := range objs {
			objs[i] = heap.RemapAddress(addr)
		}
		emit("relocated")
	}
}

func markEnd(h *oolong.Heap) bool {
	var done bool
	h.Safepoint(func() { done = h.MarkEnd() })
	return done
}

// seedGraph allocates a linked structure with a few roots.
func seedGraph(h *oolong.Heap, mut *oolong.Mutator, rng *rand.Rand) []oolong.Address {
	var objs []oolong.Address
	for range 200 {
		addr := mut.AllocObject(&oolong.Object{
			Size: uint64(16 + rng.Intn(12)*8),
			Refs: make([]oolong.Address, 2),
		})
		if addr == oolong.Nil {
			log.Fatal("seed allocation failed")
		}
		objs = append(objs, addr)
	}
	// Wire random edges.
	for _, addr := range objs {
		for f := range 2 {
			if rng.Intn(3) == 0 {
				mut.Write(addr, f, objs[rng.Intn(len(objs))])
			}
		}
	}
	for i := 0; i < 8; i++ {
		h.AddRoot(objs[rng.Intn(len(objs))])
	}
	return objs
}

// churn allocates fresh objects and rewires edges, orphaning part of
// the old graph.
func churn(h *oolong.Heap, mut *oolong.Mutator, objs []oolong.Address, rng *rand.Rand) {
	for range 50 {
		addr := mut.AllocObject(&oolong.Object{
			Size: uint64(16 + rng.Intn(12)*8),
			Refs: make([]oolong.Address, 2),
		})
		if addr == oolong.Nil {
			return
		}
		objs[rng.Intn(len(objs))] = addr
	}
	for range 40 {
		src := objs[rng.Intn(len(objs))]
		if h.IsIn(src) {
			mut.Write(src, rng.Intn(2), objs[rng.Intn(len(objs))])
		}
	}
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

package registry

import (
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"xysync/pkg/model"
	"xysync/pkg/series"
)

// createTestChannel builds a channel from a name and label key/value pairs.
func createTestChannel(name string, labels ...string) *model.Channel {
	var labelList model.Labels
	for i := 0; i+1 < len(labels); i += 2 {
		labelList = append(labelList, model.Label{Name: labels[i], Value: labels[i+1]})
	}
	return &model.Channel{Name: name, Labels: labelList}
}

func TestMemoryRegistry_AddChannel(t *testing.T) {
	t.Run("add and look up", func(t *testing.T) {
		r := NewMemoryRegistry(zap.NewNop())
		ch := createTestChannel("CH1", "device", "psu1", "quantity", "voltage")
		buf, err := r.AddChannel(ch)
		if err != nil {
			t.Fatalf("AddChannel: %v", err)
		}
		got, err := r.Buffer(ch.ID())
		if err != nil || got != buf {
			t.Fatalf("Buffer() = %v, %v", got, err)
		}
		meta, err := r.Channel(ch.ID())
		if err != nil || meta.Name != "CH1" {
			t.Errorf("Channel() = %v, %v", meta, err)
		}
	})

	t.Run("duplicate channel", func(t *testing.T) {
		r := NewMemoryRegistry(nil)
		ch := createTestChannel("CH1", "device", "psu1")
		r.AddChannel(ch)
		if _, err := r.AddChannel(createTestChannel("CH1", "device", "psu1")); !errors.Is(err, ErrChannelExists) {
			t.Errorf("err = %v, want ErrChannelExists", err)
		}
	})

	t.Run("nil channel", func(t *testing.T) {
		r := NewMemoryRegistry(nil)
		if _, err := r.AddChannel(nil); err != ErrNilChannel {
			t.Errorf("err = %v, want ErrNilChannel", err)
		}
	})
}

func TestMemoryRegistry_AppendQuery(t *testing.T) {
	r := NewMemoryRegistry(nil)
	ch := createTestChannel("CH1")
	r.AddChannel(ch)

	for i := 0; i < 5; i++ {
		if err := r.Append(ch.ID(), model.Sample{Timestamp: float64(i), Value: float64(10 + i)}); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}
	got, err := r.Query(ch.ID())
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("len = %d, want 5", len(got))
	}
	for i, s := range got {
		if s.Value != float64(10+i) {
			t.Errorf("sample %d = %v", i, s)
		}
	}

	if err := r.Append(ch.ID(), model.Sample{Timestamp: 1}); !errors.Is(err, series.ErrOutOfOrder) {
		t.Errorf("err = %v, want ErrOutOfOrder", err)
	}
	if err := r.Append("missing", model.Sample{}); !errors.Is(err, ErrChannelNotFound) {
		t.Errorf("err = %v, want ErrChannelNotFound", err)
	}
	if _, err := r.Query("missing"); !errors.Is(err, ErrChannelNotFound) {
		t.Errorf("err = %v, want ErrChannelNotFound", err)
	}
}

func TestMemoryRegistry_RemoveChannel(t *testing.T) {
	r := NewMemoryRegistry(nil)
	ch := createTestChannel("CH1")
	buf, _ := r.AddChannel(ch)

	var removed []model.ChannelID
	cancel := r.OnRemove(func(id model.ChannelID) { removed = append(removed, id) })

	if err := r.RemoveChannel(ch.ID()); err != nil {
		t.Fatalf("RemoveChannel: %v", err)
	}
	if !buf.Closed() {
		t.Errorf("buffer not closed")
	}
	if len(removed) != 1 || removed[0] != ch.ID() {
		t.Errorf("removed = %v", removed)
	}
	if _, err := r.Buffer(ch.ID()); !errors.Is(err, ErrChannelNotFound) {
		t.Errorf("err = %v, want ErrChannelNotFound", err)
	}
	if err := r.RemoveChannel(ch.ID()); !errors.Is(err, ErrChannelNotFound) {
		t.Errorf("second remove err = %v", err)
	}

	cancel()
	r.AddChannel(ch)
	r.RemoveChannel(ch.ID())
	if len(removed) != 1 {
		t.Errorf("watcher called after cancel: %v", removed)
	}
}

func TestMemoryRegistry_Channels(t *testing.T) {
	r := NewMemoryRegistry(nil)
	r.AddChannel(createTestChannel("b"))
	r.AddChannel(createTestChannel("a"))
	ids := r.Channels()
	if len(ids) != 2 || ids[0] != "a{}" || ids[1] != "b{}" {
		t.Errorf("Channels() = %v", ids)
	}
}

func TestMemoryRegistry_Concurrent(t *testing.T) {
	r := NewMemoryRegistry(nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		ch := createTestChannel("CH", "n", string(rune('a'+i)))
		r.AddChannel(ch)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				if err := r.Append(ch.ID(), model.Sample{Timestamp: float64(j)}); err != nil {
					t.Errorf("Append: %v", err)
					return
				}
				r.Channels()
			}
		}()
	}
	wg.Wait()
	for _, id := range r.Channels() {
		if s, _ := r.Query(id); len(s) != 500 {
			t.Errorf("%s has %d samples", id, len(s))
		}
	}
}

// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package provider

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/hashicorp/consul/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// expectSignal waits for one change notification.
func expectSignal(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case _, ok := <-ch:
		require.True(t, ok, "watch channel closed")
	case <-time.After(2 * time.Second):
		t.Fatal("no change signal")
	}
}

func expectNoSignal(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
		t.Fatal("unexpected change signal")
	default:
	}
}

func expectClosed(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 5*time.Millisecond)
}

func TestRemoteConstructorsValidate(t *testing.T) {
	_, err := NewConsulProvider([]string{"127.0.0.1:8500"}, "")
	assert.Error(t, err)
	consul, err := NewConsulProvider([]string{"127.0.0.1:8500"}, "agentmenu/config")
	require.NoError(t, err)
	assert.Equal(t, TypeConsul, consul.Type())

	_, err = NewEtcdProvider(context.Background(), nil, "/agentmenu/config")
	assert.Error(t, err)
	_, err = NewEtcdProvider(context.Background(), []string{"127.0.0.1:2379"}, "")
	assert.Error(t, err)

	_, err = NewZookeeperProvider(nil, "/agentmenu/config")
	assert.Error(t, err)
	_, err = NewZookeeperProvider([]string{"127.0.0.1:2181"}, "agentmenu/config")
	assert.Error(t, err)

	_, err = New(context.Background(), ProviderConfig{Type: TypeEtcd, Path: "/k"})
	assert.Error(t, err, "etcd without endpoints")
}

type kvReply struct {
	index   uint64
	value   []byte
	missing bool
	err     error
}

type fakeConsulKV struct {
	replies chan kvReply

	mu          sync.Mutex
	waitIndexes []uint64
}

func newFakeConsulKV() *fakeConsulKV {
	return &fakeConsulKV{replies: make(chan kvReply, 16)}
}

func (f *fakeConsulKV) Get(key string, q *api.QueryOptions) (*api.KVPair, *api.QueryMeta, error) {
	f.mu.Lock()
	f.waitIndexes = append(f.waitIndexes, q.WaitIndex)
	f.mu.Unlock()

	select {
	case r := <-f.replies:
		if r.err != nil {
			return nil, nil, r.err
		}
		meta := &api.QueryMeta{LastIndex: r.index}
		if r.missing {
			return nil, meta, nil
		}
		return &api.KVPair{Key: key, Value: r.value}, meta, nil
	case <-q.Context().Done():
		return nil, nil, q.Context().Err()
	}
}

func (f *fakeConsulKV) lastWaitIndex() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.waitIndexes[len(f.waitIndexes)-1]
}

func TestConsulProviderLoad(t *testing.T) {
	kv := newFakeConsulKV()
	p := &ConsulProvider{kv: kv, key: "agentmenu/config"}

	kv.replies <- kvReply{index: 1, value: []byte("server: {}")}
	data, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "server: {}", string(data))

	kv.replies <- kvReply{index: 1, missing: true}
	_, err = p.Load(context.Background())
	assert.ErrorContains(t, err, "not found")
}

func TestConsulWatchNotifiesOnIndexChange(t *testing.T) {
	defer func(d time.Duration) { consulRetryDelay = d }(consulRetryDelay)
	consulRetryDelay = time.Millisecond

	kv := newFakeConsulKV()
	p := &ConsulProvider{kv: kv, key: "agentmenu/config"}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	kv.replies <- kvReply{index: 7}
	changes, err := p.Watch(ctx)
	require.NoError(t, err)

	// Same index and a transient error are not changes.
	kv.replies <- kvReply{index: 7}
	kv.replies <- kvReply{err: errors.New("connection reset")}
	require.Eventually(t, func() bool { return len(kv.replies) == 0 }, 2*time.Second, 5*time.Millisecond)
	expectNoSignal(t, changes)

	kv.replies <- kvReply{index: 9}
	expectSignal(t, changes)
	require.Eventually(t, func() bool { return kv.lastWaitIndex() == 9 }, 2*time.Second, 5*time.Millisecond,
		"next blocking query waits on the new index")

	cancel()
	expectClosed(t, changes)
}

type fakeEtcd struct {
	value  string
	events chan clientv3.WatchResponse
	closed bool
}

func (f *fakeEtcd) Get(_ context.Context, key string, _ ...clientv3.OpOption) (*clientv3.GetResponse, error) {
	if f.value == "" {
		return &clientv3.GetResponse{}, nil
	}
	return &clientv3.GetResponse{Kvs: []*mvccpb.KeyValue{{Key: []byte(key), Value: []byte(f.value)}}}, nil
}

func (f *fakeEtcd) Watch(_ context.Context, _ string, _ ...clientv3.OpOption) clientv3.WatchChan {
	return f.events
}

func (f *fakeEtcd) Close() error {
	f.closed = true
	return nil
}

func TestEtcdProviderLoad(t *testing.T) {
	client := &fakeEtcd{value: "logger: {level: debug}"}
	p := &EtcdProvider{client: client, key: "/agentmenu/config"}

	data, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "logger: {level: debug}", string(data))

	client.value = ""
	_, err = p.Load(context.Background())
	assert.ErrorContains(t, err, "not found")

	require.NoError(t, p.Close())
	assert.True(t, client.closed)
}

func TestEtcdWatchNotifiesOnEvents(t *testing.T) {
	client := &fakeEtcd{events: make(chan clientv3.WatchResponse)}
	p := &EtcdProvider{client: client, key: "/agentmenu/config"}

	changes, err := p.Watch(context.Background())
	require.NoError(t, err)

	client.events <- clientv3.WatchResponse{}
	client.events <- clientv3.WatchResponse{CompactRevision: 3}
	expectNoSignal(t, changes)

	client.events <- clientv3.WatchResponse{Events: []*clientv3.Event{{Type: clientv3.EventTypePut}}}
	expectSignal(t, changes)

	close(client.events)
	expectClosed(t, changes)
}

type fakeZK struct {
	mu      sync.Mutex
	getWErr error
	exists  int
	armed   chan chan zk.Event
}

func newFakeZK() *fakeZK {
	return &fakeZK{armed: make(chan chan zk.Event, 8)}
}

func (f *fakeZK) arm() chan zk.Event {
	ev := make(chan zk.Event, 1)
	f.armed <- ev
	return ev
}

func (f *fakeZK) Get(string) ([]byte, *zk.Stat, error) {
	return []byte("server: {}"), &zk.Stat{}, nil
}

func (f *fakeZK) GetW(string) ([]byte, *zk.Stat, <-chan zk.Event, error) {
	f.mu.Lock()
	err := f.getWErr
	f.mu.Unlock()
	if err != nil {
		return nil, nil, nil, err
	}
	return []byte("server: {}"), &zk.Stat{}, f.arm(), nil
}

func (f *fakeZK) ExistsW(string) (bool, *zk.Stat, <-chan zk.Event, error) {
	f.mu.Lock()
	f.exists++
	f.mu.Unlock()
	return false, nil, f.arm(), nil
}

func (f *fakeZK) Close() {}

func (f *fakeZK) setGetWErr(err error) {
	f.mu.Lock()
	f.getWErr = err
	f.mu.Unlock()
}

func (f *fakeZK) next(t *testing.T) chan zk.Event {
	t.Helper()
	select {
	case ev := <-f.armed:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("watch was not re-armed")
		return nil
	}
}

func TestZookeeperWatchRearms(t *testing.T) {
	conn := newFakeZK()
	p := &ZookeeperProvider{conn: conn, path: "/agentmenu/config"}

	data, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "server: {}", string(data))

	changes, err := p.Watch(context.Background())
	require.NoError(t, err)
	first := conn.next(t)

	first <- zk.Event{Type: zk.EventNodeDataChanged}
	expectSignal(t, changes)
	second := conn.next(t)

	// A deleted node is watched for re-creation through ExistsW.
	conn.setGetWErr(zk.ErrNoNode)
	second <- zk.Event{Type: zk.EventNodeDeleted}
	third := conn.next(t)
	expectNoSignal(t, changes)
	conn.mu.Lock()
	assert.Equal(t, 1, conn.exists)
	conn.mu.Unlock()

	conn.setGetWErr(nil)
	third <- zk.Event{Type: zk.EventNodeCreated}
	expectSignal(t, changes)
	fourth := conn.next(t)

	fourth <- zk.Event{Type: zk.EventNotWatching}
	expectClosed(t, changes)
}

func TestZookeeperWatchStopsOnContext(t *testing.T) {
	conn := newFakeZK()
	p := &ZookeeperProvider{conn: conn, path: "/agentmenu/config"}
	ctx, cancel := context.WithCancel(context.Background())

	changes, err := p.Watch(ctx)
	require.NoError(t, err)
	conn.next(t)

	cancel()
	expectClosed(t, changes)
}

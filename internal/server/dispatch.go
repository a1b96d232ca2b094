package server

import (
	"time"

	"github.com/cachemir/cachemir/pkg/binproto"
	"github.com/cachemir/cachemir/pkg/bucket"
	"github.com/cachemir/cachemir/pkg/docbuf"
	"github.com/cachemir/cachemir/pkg/engine"
	"github.com/cachemir/cachemir/pkg/metrics"
	"github.com/cachemir/cachemir/pkg/multipath"
	"github.com/cachemir/cachemir/pkg/subdocexec"
	"github.com/cachemir/cachemir/pkg/topkeys"
	"github.com/cachemir/cachemir/pkg/validator"
)

// dispatcher holds the per-connection state the opcode handlers share:
// the bucket this connection is currently bound to, its docbuf scratch
// space, and identity for logging/metrics.
type dispatcher struct {
	srv        *Server
	connID     string
	binding    *bucket.Binding
	bucketName string
	docbuf     *docbuf.Connection
}

// statsAdapter satisfies subdocexec.Stats and multipath's dependency on
// it, fanning each counter out to both the topkeys table (spec.md §4.5
// "Side effects ... topkeys update") and the Prometheus surface.
type statsAdapter struct {
	table  *topkeys.Table
	bucket string
}

func (a statsAdapter) IncrCmdGet(key string) {
	a.table.IncrCmdGet(key)
	metrics.ObserveCommand("get", "success", 0)
}

func (a statsAdapter) IncrCmdSet(key string) {
	a.table.IncrCmdSet(key)
	metrics.ObserveCommand("set", "success", 0)
}

func (a statsAdapter) IncrRetry(key string) {
	a.table.IncrRetry(key)
	metrics.ObserveRetry(a.bucket)
}

func (a statsAdapter) IncrTmpFail(key string) {
	a.table.IncrTmpFail(key)
	metrics.ObserveTmpFail(a.bucket)
}

// dispatch routes one decoded request packet to its handler and always
// returns a complete response packet; it never panics on a malformed
// request — the validator stage downgrades those to protocol errors.
func (d *dispatcher) dispatch(req *binproto.Packet) *binproto.Packet {
	switch req.Header.Opcode {
	case binproto.OpSelectBucket:
		return d.handleSelectBucket(req)
	case binproto.OpCreateBucket:
		return d.handleCreateBucket(req)
	case binproto.OpDeleteBucket:
		return d.handleDeleteBucket(req)
	case binproto.OpIoctlGet:
		return d.handleIoctlGet(req)
	case binproto.OpIoctlSet:
		return d.handleIoctlSet(req)
	case binproto.OpGet:
		return d.handleBasicGet(req)
	case binproto.OpSet:
		return d.handleBasicSet(req)
	case binproto.OpDel:
		return d.handleBasicDel(req)
	case binproto.OpNoop:
		return binproto.NewResponse(req.Header.Opcode, binproto.StatusSuccess)
	case binproto.OpSubdocMultiLookup:
		return d.handleMultiLookup(req)
	case binproto.OpSubdocMultiMutation:
		return d.handleMultiMutation(req)
	default:
		if _, known := subdocTraitsTable()[req.Header.Opcode]; known {
			return d.handleSingle(req)
		}
		return binproto.NewResponse(req.Header.Opcode, binproto.StatusUnknownCommand)
	}
}

// subdocTraitsTable indirects through subdocexec's package-level table so
// dispatch's default branch can test opcode membership without
// duplicating the traits themselves.
func subdocTraitsTable() map[binproto.Opcode]subdocexec.Traits {
	return subdocexec.TraitsTable
}

func (d *dispatcher) engineAndStats() (engine.Engine, subdocexec.Stats, binproto.Status) {
	eng, ok := d.binding.Engine()
	if !ok {
		return nil, nil, binproto.StatusKeyNotFound
	}
	return eng, statsAdapter{table: d.srv.topkeys, bucket: d.bucketName}, binproto.StatusSuccess
}

func (d *dispatcher) handleSingle(req *binproto.Packet) *binproto.Packet {
	if res := validator.GenericChecks(req); res.Status != binproto.StatusSuccess {
		return binproto.NewResponse(req.Header.Opcode, res.Status)
	}

	extras, err := binproto.DecodeSingleExtras(req.Extras)
	if err != nil {
		return binproto.NewResponse(req.Header.Opcode, binproto.StatusEInval)
	}
	if int(extras.PathLen) > len(req.Value) {
		return binproto.NewResponse(req.Header.Opcode, binproto.StatusEInval)
	}
	path := string(req.Value[:extras.PathLen])
	value := req.Value[extras.PathLen:]

	if res := validator.Single(d.srv.limits, req.Header.Opcode, path, value, extras.Flags); res.Status != binproto.StatusSuccess {
		return binproto.NewResponse(req.Header.Opcode, res.Status)
	}

	eng, stats, status := d.engineAndStats()
	if status != binproto.StatusSuccess {
		return binproto.NewResponse(req.Header.Opcode, status)
	}
	defer d.binding.Done()

	ex := subdocexec.NewExecutor(eng, d.docbuf, stats)
	ex.MaxRetryAttempts = d.srv.cfg.MaxRetryAttempts

	reqCtx := subdocexec.Request{
		Opcode:    req.Header.Opcode,
		Key:       string(req.Key),
		VBucket:   engine.VBucketOf(string(req.Key)),
		Path:      path,
		Value:     value,
		Flags:     extras.Flags,
		ClientCAS: req.Header.CAS,
	}
	resp := ex.Execute(reqCtx)

	out := binproto.NewResponse(req.Header.Opcode, resp.Status).WithCAS(resp.CAS)
	if len(resp.Value) > 0 {
		out.WithValue(resp.Value, binproto.DatatypeJSON)
	}
	return out
}

func (d *dispatcher) handleMultiLookup(req *binproto.Packet) *binproto.Packet {
	if res := validator.GenericChecks(req); res.Status != binproto.StatusSuccess {
		return binproto.NewResponse(req.Header.Opcode, res.Status)
	}

	specs, err := binproto.DecodeMultiLookupSpecs(req.Value, d.srv.limits.MaxMultiSpecs)
	if err != nil {
		return binproto.NewResponse(req.Header.Opcode, binproto.StatusEInval)
	}
	if res := validator.MultiLookup(d.srv.limits, specs); res.Status != binproto.StatusSuccess {
		return binproto.NewResponse(req.Header.Opcode, res.Status)
	}

	eng, stats, status := d.engineAndStats()
	if status != binproto.StatusSuccess {
		return binproto.NewResponse(req.Header.Opcode, status)
	}
	defer d.binding.Done()

	coord := multipath.NewCoordinator(eng, d.docbuf, stats)
	lookupSpecs := make([]multipath.LookupSpec, len(specs))
	for i, s := range specs {
		lookupSpecs[i] = multipath.LookupSpec{Opcode: s.Opcode, Flags: s.Flags, Path: s.Path}
	}

	key := string(req.Key)
	result := coord.Lookup(engine.VBucketOf(key), key, lookupSpecs)
	if result.Status != binproto.StatusSuccess && result.Status != binproto.StatusSubdocMultiPathFailure {
		return binproto.NewResponse(req.Header.Opcode, result.Status)
	}

	out := binproto.NewResponse(req.Header.Opcode, result.Status).WithCAS(result.CAS)
	out.WithValue(binproto.EncodeLookupResults(result.Results), binproto.DatatypeRaw)
	return out
}

func (d *dispatcher) handleMultiMutation(req *binproto.Packet) *binproto.Packet {
	if res := validator.GenericChecks(req); res.Status != binproto.StatusSuccess {
		return binproto.NewResponse(req.Header.Opcode, res.Status)
	}

	specs, err := binproto.DecodeMultiMutationSpecs(req.Value, d.srv.limits.MaxMultiSpecs)
	if err != nil {
		return binproto.NewResponse(req.Header.Opcode, binproto.StatusEInval)
	}
	if res := validator.MultiMutation(d.srv.limits, specs); res.Status != binproto.StatusSuccess {
		out := binproto.NewResponse(req.Header.Opcode, res.Status)
		out.WithValue(binproto.EncodeMutationFailure(binproto.MutationResult{Index: uint8(res.Index), Status: res.Status}), binproto.DatatypeRaw)
		return out
	}

	eng, stats, status := d.engineAndStats()
	if status != binproto.StatusSuccess {
		return binproto.NewResponse(req.Header.Opcode, status)
	}
	defer d.binding.Done()

	coord := multipath.NewCoordinator(eng, d.docbuf, stats)
	coord.MaxRetryAttempts = d.srv.cfg.MaxRetryAttempts
	mutSpecs := make([]multipath.MutationSpec, len(specs))
	for i, s := range specs {
		mutSpecs[i] = multipath.MutationSpec{Opcode: s.Opcode, Flags: s.Flags, Path: s.Path, Value: s.Value}
	}

	key := string(req.Key)
	result := coord.Mutate(engine.VBucketOf(key), key, req.Header.CAS, mutSpecs)
	out := binproto.NewResponse(req.Header.Opcode, result.Status).WithCAS(result.CAS)
	if result.Status == binproto.StatusSubdocMultiPathFailure {
		out.WithValue(binproto.EncodeMutationFailure(binproto.MutationResult{Index: uint8(result.FailIndex), Status: result.FailStatus}), binproto.DatatypeRaw)
	}
	return out
}

func (d *dispatcher) handleSelectBucket(req *binproto.Packet) *binproto.Packet {
	name := string(req.Key)
	binding, err := d.srv.registry.Select(name)
	if err != nil {
		return binproto.NewResponse(req.Header.Opcode, binproto.StatusKeyNotFound)
	}
	d.binding = binding
	d.bucketName = name
	return binproto.NewResponse(req.Header.Opcode, binproto.StatusSuccess)
}

func (d *dispatcher) handleCreateBucket(req *binproto.Packet) *binproto.Packet {
	name := string(req.Key)
	err := d.srv.registry.Create(name, engine.NewMemEngine())
	switch err {
	case nil:
		metrics.ActiveBuckets.Inc()
		return binproto.NewResponse(req.Header.Opcode, binproto.StatusSuccess)
	case bucket.ErrAlreadyExists:
		return binproto.NewResponse(req.Header.Opcode, binproto.StatusKeyExists)
	case bucket.ErrInvalidName:
		return binproto.NewResponse(req.Header.Opcode, binproto.StatusEInval)
	case bucket.ErrCapacity:
		return binproto.NewResponse(req.Header.Opcode, binproto.StatusENoMem)
	default:
		return binproto.NewResponse(req.Header.Opcode, binproto.StatusEInternal)
	}
}

func (d *dispatcher) handleDeleteBucket(req *binproto.Packet) *binproto.Packet {
	name := string(req.Key)
	start := time.Now()
	err := d.srv.registry.Delete(name)
	metrics.BucketDeleteLatency.Observe(time.Since(start).Seconds())
	if err == bucket.ErrNotFound {
		return binproto.NewResponse(req.Header.Opcode, binproto.StatusKeyNotFound)
	}
	metrics.ActiveBuckets.Dec()
	return binproto.NewResponse(req.Header.Opcode, binproto.StatusSuccess)
}

func (d *dispatcher) handleIoctlGet(req *binproto.Packet) *binproto.Packet {
	value, status := d.srv.ioctl.Get(string(req.Key))
	out := binproto.NewResponse(req.Header.Opcode, status)
	if status == binproto.StatusSuccess {
		out.WithValue(value, binproto.DatatypeRaw)
	}
	return out
}

func (d *dispatcher) handleIoctlSet(req *binproto.Packet) *binproto.Packet {
	status := d.srv.ioctl.Set(string(req.Key), req.Value)
	return binproto.NewResponse(req.Header.Opcode, status)
}

func (d *dispatcher) handleBasicGet(req *binproto.Packet) *binproto.Packet {
	eng, _, status := d.engineAndStats()
	if status != binproto.StatusSuccess {
		return binproto.NewResponse(req.Header.Opcode, status)
	}
	defer d.binding.Done()

	key := string(req.Key)
	item, estatus, err := eng.Get(engine.VBucketOf(key), key)
	if err == engine.ErrDisconnect {
		return binproto.NewResponse(req.Header.Opcode, binproto.StatusEInternal)
	}
	if estatus == engine.StatusKeyEnoent {
		return binproto.NewResponse(req.Header.Opcode, binproto.StatusKeyNotFound)
	}
	defer eng.Release(item)

	return binproto.NewResponse(req.Header.Opcode, binproto.StatusSuccess).
		WithValue(item.Value, item.Datatype).
		WithCAS(item.CAS)
}

func (d *dispatcher) handleBasicSet(req *binproto.Packet) *binproto.Packet {
	eng, _, status := d.engineAndStats()
	if status != binproto.StatusSuccess {
		return binproto.NewResponse(req.Header.Opcode, status)
	}
	defer d.binding.Done()

	key := string(req.Key)
	vbucket := engine.VBucketOf(key)
	item, err := eng.Allocate(vbucket, key, len(req.Value), 0, 0, req.Header.Datatype)
	if err != nil {
		return binproto.NewResponse(req.Header.Opcode, binproto.StatusENoMem)
	}
	defer eng.Release(item)
	copy(item.Value, req.Value)

	estatus, err := eng.Store(item, engine.StoreSet)
	if err != nil || estatus != engine.StatusSuccess {
		return binproto.NewResponse(req.Header.Opcode, binproto.StatusEInternal)
	}
	return binproto.NewResponse(req.Header.Opcode, binproto.StatusSuccess).WithCAS(item.CAS)
}

func (d *dispatcher) handleBasicDel(req *binproto.Packet) *binproto.Packet {
	eng, _, status := d.engineAndStats()
	if status != binproto.StatusSuccess {
		return binproto.NewResponse(req.Header.Opcode, status)
	}
	defer d.binding.Done()

	key := string(req.Key)
	estatus, err := eng.Delete(engine.VBucketOf(key), key)
	if err != nil {
		return binproto.NewResponse(req.Header.Opcode, binproto.StatusEInternal)
	}
	if estatus == engine.StatusKeyEnoent {
		return binproto.NewResponse(req.Header.Opcode, binproto.StatusKeyNotFound)
	}
	return binproto.NewResponse(req.Header.Opcode, binproto.StatusSuccess)
}

package command

import (
	"strconv"

	"github.com/rhino-rox/rhino-rox/internal/db"
	"github.com/rhino-rox/rhino-rox/internal/object"
)

// lookupTyped fetches argv[idx] from ctx.DB, replying wrongtypeerr on
// a type mismatch or nullbulk on a miss. It returns ok == false in
// either case, meaning the caller should return immediately
// (rr_db.c's `rr_db_lookup_or_reply(...) == NULL || checkType(...)`
// idiom, collapsed into one helper since Go has no implicit early-out
// macro).
func lookupTyped(ctx *Context, idx int, want object.Type) (*object.Object, bool) {
	v, err := db.CheckType(ctx.DB, ctx.Arg(idx), want)
	if err != nil {
		ctx.ReplyObj(object.Shared.WrongTypeErr)
		return nil, false
	}
	if v == nil {
		ctx.ReplyNullBulk()
		return nil, false
	}
	return v, true
}

// --- admin ---

// cmdPing takes zero or one arguments - a range the table's single
// exact/at-least arity field can't express, so (as rr_cmd_admin_ping
// does) the upper bound is checked inside the handler itself.
func cmdPing(ctx *Context) {
	if len(ctx.Argv) > 2 {
		ctx.ReplyError("wrong number of arguments for 'ping' command")
		return
	}
	if len(ctx.Argv) == 1 {
		ctx.ReplyObj(object.Shared.Pong)
		return
	}
	ctx.ReplyBulkObject(ctx.Argv[1])
}

func cmdEcho(ctx *Context) {
	ctx.ReplyBulkObject(ctx.Argv[1])
}

func cmdShutdown(ctx *Context) {
	ctx.Hooks.RequestShutdown()
	ctx.ReplyStatus("OK")
	ctx.CloseAfterReply = true
}

func cmdClientList(ctx *Context) {
	ctx.ReplyBulk([]byte(ctx.Hooks.ClientListText()))
}

func cmdInfo(ctx *Context) {
	ctx.ReplyBulk([]byte(ctx.Hooks.InfoSnapshot()))
}

func cmdConfigGet(ctx *Context) {
	param := ctx.ArgStr(2)
	value, ok := ctx.Hooks.ConfigGet(param)
	if !ok {
		ctx.ReplyMultiBulkHeader(0)
		return
	}
	ctx.ReplyMultiBulkHeader(2)
	ctx.ReplyBulk([]byte(param))
	ctx.ReplyBulk([]byte(value))
}

// --- keyspace / string ---

func cmdGet(ctx *Context) {
	v := ctx.DB.Lookup(ctx.Arg(1))
	if v == nil {
		ctx.ReplyNullBulk()
		return
	}
	if v.Type() != object.TypeString {
		ctx.ReplyObj(object.Shared.WrongTypeErr)
		return
	}
	ctx.ReplyBulkObject(v)
}

func cmdSet(ctx *Context) {
	if ctx.Hooks.LazyFreeDel() {
		ctx.DB.Del(ctx.Arg(1), true, nil)
	}
	val := object.TryObjectEncoding(object.CreateString(ctx.Arg(2)))
	if ctx.DB.SetKey(ctx.Arg(1), val) {
		ctx.ReplyObj(object.Shared.OK)
	} else {
		ctx.ReplyObj(object.Shared.Err)
	}
}

func cmdDel(ctx *Context) {
	if ctx.DB.Del(ctx.Arg(1), ctx.Hooks.LazyFreeDel(), ctx.Hooks.Worker()) {
		ctx.ReplyObj(object.Shared.Cone)
	} else {
		ctx.ReplyObj(object.Shared.Czero)
	}
}

func cmdExists(ctx *Context) {
	if ctx.DB.Exists(ctx.Arg(1)) {
		ctx.ReplyObj(object.Shared.Cone)
	} else {
		ctx.ReplyObj(object.Shared.Czero)
	}
}

func cmdLen(ctx *Context) {
	ctx.ReplyInteger(int64(ctx.DB.Len()))
}

func cmdType(ctx *Context) {
	v := ctx.DB.Lookup(ctx.Arg(1))
	if v == nil {
		ctx.ReplyStatus("none")
		return
	}
	switch v.Type() {
	case object.TypeString:
		ctx.ReplyStatus("string")
	case object.TypeHash:
		ctx.ReplyStatus("trie")
	case object.TypeHeapQ:
		ctx.ReplyStatus("heapq")
	case object.TypeFts:
		ctx.ReplyStatus("fts")
	default:
		ctx.ReplyStatus("unknown")
	}
}

func cmdSelect(ctx *Context) {
	n, err := strconv.Atoi(ctx.ArgStr(1))
	if err != nil {
		ctx.ReplyError("value is not an integer or out of range")
		return
	}
	newDB, err := ctx.Hooks.SelectDB(n)
	if err != nil {
		ctx.ReplyError("DB index is out of range")
		return
	}
	ctx.DB = newDB
	ctx.ReplyStatus("OK")
}

func cmdFlushDB(ctx *Context) {
	ctx.Hooks.FlushDB(ctx.DB)
	ctx.ReplyStatus("OK")
}

// --- hash / trie ---

func cmdRGet(ctx *Context) {
	trie, ok := lookupTyped(ctx, 1, object.TypeHash)
	if !ok {
		return
	}
	v, found := trie.Hash().Get(ctx.Arg(2))
	if !found {
		ctx.ReplyNullBulk()
		return
	}
	ctx.ReplyBulkObject(v)
}

func cmdRExists(ctx *Context) {
	trie, ok := lookupTyped(ctx, 1, object.TypeHash)
	if !ok {
		return
	}
	if trie.Hash().Contains(ctx.Arg(2)) {
		ctx.ReplyObj(object.Shared.Cone)
	} else {
		ctx.ReplyObj(object.Shared.Czero)
	}
}

func cmdRLen(ctx *Context) {
	trie, ok := lookupTyped(ctx, 1, object.TypeHash)
	if !ok {
		return
	}
	ctx.ReplyInteger(int64(trie.Hash().Len()))
}

func cmdRSet(ctx *Context) {
	trie, err := db.LookupOrCreate(ctx.DB, ctx.Arg(1), object.TypeHash)
	if err != nil {
		ctx.ReplyError(err.Error())
		return
	}
	// val is freshly created (refcount 1); Set takes ownership of that
	// reference directly, same as db.Add's refcount-neutral contract -
	// no extra IncrRef here, or the entry's refcount would leak by one
	// every time it's later removed (the hash's free callback only
	// decrements once).
	val := object.TryObjectEncoding(object.CreateString(ctx.Arg(3)))
	if trie.Hash().Set(ctx.Arg(2), val) {
		ctx.ReplyObj(object.Shared.OK)
	} else {
		ctx.ReplyObj(object.Shared.Err)
	}
}

func cmdRDel(ctx *Context) {
	trie, ok := lookupTyped(ctx, 1, object.TypeHash)
	if !ok {
		return
	}
	v, found := trie.Hash().Del(ctx.Arg(2))
	if !found {
		ctx.ReplyObj(object.Shared.Czero)
		return
	}
	object.DecrRef(v)
	ctx.ReplyObj(object.Shared.Cone)
}

func replyHashEntries(ctx *Context, trie *object.Object, keys, values bool, prefix []byte) {
	type kv struct {
		key []byte
		val *object.Object
	}
	var entries []kv
	collect := func(key []byte, val *object.Object) bool {
		entries = append(entries, kv{append([]byte(nil), key...), val})
		return true
	}
	if prefix != nil {
		it := trie.Hash().PrefixIterator(prefix)
		for it.HasNext() {
			e := it.Next()
			collect(e.Key, e.Value)
		}
	} else {
		trie.Hash().ForEach(collect)
	}

	multiplier := 0
	if keys {
		multiplier++
	}
	if values {
		multiplier++
	}
	ctx.ReplyMultiBulkHeader(len(entries) * multiplier)
	for _, e := range entries {
		if keys {
			ctx.ReplyBulk(e.key)
		}
		if values {
			ctx.ReplyBulkObject(e.val)
		}
	}
}

func cmdRPGet(ctx *Context) {
	trie, ok := lookupTyped(ctx, 1, object.TypeHash)
	if !ok {
		return
	}
	replyHashEntries(ctx, trie, true, true, ctx.Arg(2))
}

func cmdRKeys(ctx *Context) {
	trie, ok := lookupTyped(ctx, 1, object.TypeHash)
	if !ok {
		return
	}
	replyHashEntries(ctx, trie, true, false, nil)
}

func cmdRValues(ctx *Context) {
	trie, ok := lookupTyped(ctx, 1, object.TypeHash)
	if !ok {
		return
	}
	replyHashEntries(ctx, trie, false, true, nil)
}

func cmdRGetAll(ctx *Context) {
	trie, ok := lookupTyped(ctx, 1, object.TypeHash)
	if !ok {
		return
	}
	replyHashEntries(ctx, trie, true, true, nil)
}

// --- heap queue ---

func cmdHqPush(ctx *Context) {
	score, err := strconv.ParseFloat(ctx.ArgStr(2), 64)
	if err != nil {
		ctx.ReplyError("value is not a valid float")
		return
	}
	hq, err := db.LookupOrCreate(ctx.DB, ctx.Arg(1), object.TypeHeapQ)
	if err != nil {
		ctx.ReplyError(err.Error())
		return
	}
	// val is freshly created (refcount 1); Push takes ownership of that
	// reference directly, so no extra IncrRef here (mirrors cmdRSet's
	// Hash().Set() transfer).
	val := object.TryObjectEncoding(object.CreateString(ctx.Arg(3)))
	hq.HeapQ().Push(object.HeapQItem{Score: score, Obj: val})
	ctx.ReplyObj(object.Shared.OK)
}

func cmdHqPop(ctx *Context) {
	hq, ok := lookupTyped(ctx, 1, object.TypeHeapQ)
	if !ok {
		return
	}
	item, found := hq.HeapQ().Pop()
	if !found {
		ctx.ReplyNullBulk()
		return
	}
	ctx.ReplyBulkObject(item.Obj)
	object.DecrRef(item.Obj)
}

func cmdHqPeek(ctx *Context) {
	hq, ok := lookupTyped(ctx, 1, object.TypeHeapQ)
	if !ok {
		return
	}
	item, found := hq.HeapQ().Min()
	if !found {
		ctx.ReplyNullBulk()
		return
	}
	ctx.ReplyBulkObject(item.Obj)
}

func cmdHqLen(ctx *Context) {
	hq, ok := lookupTyped(ctx, 1, object.TypeHeapQ)
	if !ok {
		return
	}
	ctx.ReplyInteger(int64(hq.HeapQ().Len()))
}

func cmdHqPopN(ctx *Context) {
	n, err := strconv.Atoi(ctx.ArgStr(2))
	if err != nil || n < 0 {
		ctx.ReplyError("invalid non-negative integer")
		return
	}
	hq, ok := lookupTyped(ctx, 1, object.TypeHeapQ)
	if !ok {
		return
	}
	length := hq.HeapQ().Len()
	if n > length {
		n = length
	}
	ctx.ReplyMultiBulkHeader(n)
	for ; n > 0; n-- {
		item, found := hq.HeapQ().Pop()
		if !found {
			break
		}
		ctx.ReplyBulkObject(item.Obj)
		object.DecrRef(item.Obj)
	}
}

// --- full-text search ---

func cmdDSet(ctx *Context) {
	fts, err := db.LookupOrCreate(ctx.DB, ctx.Arg(1), object.TypeFts)
	if err != nil {
		ctx.ReplyError(err.Error())
		return
	}
	// title/body are freshly created (refcount 1 each) and exist only
	// for this call; FtsAdd takes its own reference via IncrRef, so the
	// transient local reference must be released afterward or the
	// index's copy would never reach zero on ddel.
	title := object.TryObjectEncoding(object.CreateString(ctx.Arg(2)))
	body := object.CreateString(ctx.Arg(3))
	fts.FtsAdd(title, body)
	object.DecrRef(title)
	object.DecrRef(body)
	ctx.ReplyObj(object.Shared.OK)
}

func cmdDGet(ctx *Context) {
	fts, ok := lookupTyped(ctx, 1, object.TypeFts)
	if !ok {
		return
	}
	body, found := fts.FtsGet(ctx.ArgStr(2))
	if !found {
		ctx.ReplyNullBulk()
		return
	}
	ctx.ReplyBulkObject(body)
}

func cmdDSearch(ctx *Context) {
	fts, ok := lookupTyped(ctx, 1, object.TypeFts)
	if !ok {
		return
	}
	results := fts.FtsSearch(ctx.ArgStr(2), 0)
	ctx.ReplyMultiBulkHeader(len(results) * 2)
	for _, r := range results {
		ctx.ReplyBulk([]byte(r.Title))
		ctx.ReplyBulkObject(r.Body)
	}
}

func cmdDLen(ctx *Context) {
	fts, ok := lookupTyped(ctx, 1, object.TypeFts)
	if !ok {
		return
	}
	ctx.ReplyInteger(int64(fts.Len()))
}

func cmdDDel(ctx *Context) {
	fts, ok := lookupTyped(ctx, 1, object.TypeFts)
	if !ok {
		return
	}
	if fts.FtsDel(ctx.ArgStr(2)) {
		ctx.ReplyObj(object.Shared.Cone)
	} else {
		ctx.ReplyObj(object.Shared.Czero)
	}
}

// BuildDefaultTable compiles the full command table (spec.md's command
// surface plus the SPEC_FULL.md §5.1-5.3 supplements).
func BuildDefaultTable() *Table {
	t := NewTable()
	reg := func(name string, arity int, flags Flag, handler HandlerFunc) {
		t.Register(&Command{Name: name, Arity: arity, Flags: flags, Handler: handler})
	}

	reg("ping", -1, FlagFast, cmdPing)
	reg("echo", 2, FlagFast, cmdEcho)
	reg("shutdown", -1, FlagAdmin, cmdShutdown)
	reg("info", 1, FlagAdmin, cmdInfo)
	reg("client", 2, FlagAdmin, cmdClientList) // "client list" arrives as argv[0]="client"; argv[1] is not checked (nor is "get" for "config")
	reg("config", 3, FlagAdmin|FlagReadonly, cmdConfigGet)

	reg("get", 2, FlagReadonly|FlagFast, cmdGet)
	reg("set", 3, FlagWrite|FlagDenyOOM, cmdSet)
	reg("del", 2, FlagWrite, cmdDel)
	reg("exists", 2, FlagReadonly|FlagFast, cmdExists)
	reg("len", 1, FlagReadonly|FlagFast, cmdLen)
	reg("type", 2, FlagReadonly|FlagFast, cmdType)
	reg("select", 2, FlagFast, cmdSelect)
	reg("flushdb", 1, FlagWrite, cmdFlushDB)

	reg("rget", 3, FlagReadonly, cmdRGet)
	reg("rexists", 3, FlagReadonly|FlagFast, cmdRExists)
	reg("rlen", 2, FlagReadonly|FlagFast, cmdRLen)
	reg("rset", 4, FlagWrite|FlagDenyOOM, cmdRSet)
	reg("rdel", 3, FlagWrite, cmdRDel)
	reg("rpget", 3, FlagReadonly, cmdRPGet)
	reg("rkeys", 2, FlagReadonly, cmdRKeys)
	reg("rvalues", 2, FlagReadonly, cmdRValues)
	reg("rgetall", 2, FlagReadonly, cmdRGetAll)

	reg("qpush", 4, FlagWrite|FlagDenyOOM, cmdHqPush)
	reg("qpop", 2, FlagWrite, cmdHqPop)
	reg("qpeek", 2, FlagReadonly, cmdHqPeek)
	reg("qlen", 2, FlagReadonly|FlagFast, cmdHqLen)
	reg("qpopn", 3, FlagWrite, cmdHqPopN)

	reg("dset", 4, FlagWrite|FlagDenyOOM, cmdDSet)
	reg("dget", 3, FlagReadonly, cmdDGet)
	reg("dsearch", 3, FlagReadonly, cmdDSearch)
	reg("dlen", 2, FlagReadonly|FlagFast, cmdDLen)
	reg("ddel", 3, FlagWrite, cmdDDel)

	return t
}

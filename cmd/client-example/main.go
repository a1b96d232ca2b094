// Command client-example demonstrates the subdocd client SDK against a
// running daemon: basic get/set, single-path sub-document mutation, and
// a multi-path lookup/mutation round trip.
package main

import (
	"fmt"
	"log"

	"github.com/cachemir/cachemir/pkg/binproto"
	"github.com/cachemir/cachemir/pkg/client"
)

func main() {
	c := client.New("localhost:11211")
	defer c.Close()

	fmt.Println("=== subdocd client example ===")

	fmt.Println("\n--- Basic document operations ---")

	doc := []byte(`{"name":"Ada Lovelace","age":28,"tags":["engineer"]}`)
	if _, err := c.Set("user:1", doc, binproto.DatatypeJSON); err != nil {
		log.Fatalf("SET failed: %v", err)
	}
	fmt.Println("✓ SET user:1")

	value, cas, err := c.Get("user:1")
	if err != nil {
		log.Fatalf("GET failed: %v", err)
	}
	fmt.Printf("✓ GET user:1 = %s (cas=%d)\n", value, cas)

	fmt.Println("\n--- Single-path sub-document operations ---")

	if cas, err := c.SubdocDictUpsert("user:1", "age", []byte("29"), client.SubdocOpts{}); err != nil {
		log.Printf("subdoc upsert failed: %v", err)
	} else {
		fmt.Printf("✓ SUBDOC_DICT_UPSERT user:1 age=29 (cas=%d)\n", cas)
	}

	if value, _, err := c.SubdocGet("user:1", "name"); err != nil {
		log.Printf("subdoc get failed: %v", err)
	} else {
		fmt.Printf("✓ SUBDOC_GET user:1 name = %s\n", value)
	}

	if exists, err := c.SubdocExists("user:1", "tags"); err != nil {
		log.Printf("subdoc exists failed: %v", err)
	} else {
		fmt.Printf("✓ SUBDOC_EXISTS user:1 tags = %t\n", exists)
	}

	if cas, err := c.SubdocArrayPushLast("user:1", "tags", []byte(`"mathematician"`), client.SubdocOpts{}); err != nil {
		log.Printf("subdoc array push failed: %v", err)
	} else {
		fmt.Printf("✓ SUBDOC_ARRAY_PUSH_LAST user:1 tags (cas=%d)\n", cas)
	}

	fmt.Println("\n--- Multi-path lookup ---")

	status, results, err := c.MultiLookup("user:1", []client.LookupSpec{
		{Opcode: binproto.OpSubdocGet, Path: "name"},
		{Opcode: binproto.OpSubdocGet, Path: "age"},
		{Opcode: binproto.OpSubdocGet, Path: "does.not.exist"},
	})
	if err != nil {
		log.Printf("multi-lookup failed: %v", err)
	} else {
		fmt.Printf("✓ MULTI_LOOKUP user:1 overall=0x%02x\n", status)
		for i, r := range results {
			fmt.Printf("   [%d] status=0x%02x value=%s\n", i, r.Status, r.Value)
		}
	}

	fmt.Println("\n--- Multi-path mutation ---")

	newCAS, err := c.MultiMutate("user:1", 0, []client.MutationSpec{
		{Opcode: binproto.OpSubdocDictUpsert, Path: "city", Value: []byte(`"London"`)},
		{Opcode: binproto.OpSubdocDictUpsert, Path: "age", Value: []byte("30")},
	})
	if err != nil {
		log.Printf("multi-mutate failed: %v", err)
	} else {
		fmt.Printf("✓ MULTI_MUTATION user:1 (cas=%d)\n", newCAS)
	}

	fmt.Println("\n--- Cleanup ---")

	if err := c.Delete("user:1"); err != nil {
		log.Printf("DEL failed: %v", err)
	} else {
		fmt.Println("✓ DEL user:1")
	}

	fmt.Println("\n--- Bucket administration ---")

	if err := c.CreateBucket("reports"); err != nil {
		log.Printf("create bucket failed: %v", err)
	} else {
		fmt.Println("✓ CREATE_BUCKET reports")
	}
	if err := c.SelectBucket("reports"); err != nil {
		log.Printf("select bucket failed: %v", err)
	} else {
		fmt.Println("✓ SELECT_BUCKET reports")
	}

	fmt.Println("\n=== example complete ===")
}

package ueficore

import (
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"

	"github.com/costinm/efiabi/pkg/uefi"
)

// MemoryTotal is the amount of memory of one type in a memory map.
type MemoryTotal struct {
	Type    uefi.MemoryType
	Regions int
	Pages   uint64
}

// Bytes returns the total size.
func (t MemoryTotal) Bytes() uint64 {
	return t.Pages * uefi.PageSize
}

func (t MemoryTotal) String() string {
	return fmt.Sprintf("%-20s %4d regions %10s", t.Type, t.Regions, humanize.IBytes(t.Bytes()))
}

// MemoryTotals summarises m per memory type, ordered by type.
func MemoryTotals(m *uefi.MemoryMap) []MemoryTotal {
	byType := make(map[uefi.MemoryType]*MemoryTotal)

	for _, d := range m.Descriptors() {
		t, ok := byType[d.Type]

		if !ok {
			t = &MemoryTotal{Type: d.Type}
			byType[d.Type] = t
		}

		t.Regions++
		t.Pages += d.NumberOfPages
	}

	totals := make([]MemoryTotal, 0, len(byType))

	for _, t := range byType {
		totals = append(totals, *t)
	}

	sort.Slice(totals, func(i, j int) bool {
		return totals[i].Type < totals[j].Type
	})

	return totals
}

// Usable returns the bytes of conventional memory, plus boot services
// memory which is reclaimed once boot services exit.
func Usable(totals []MemoryTotal) (n uint64) {
	for _, t := range totals {
		switch t.Type {
		case uefi.ConventionalMemory, uefi.BootServicesCode, uefi.BootServicesData:
			n += t.Bytes()
		}
	}

	return
}

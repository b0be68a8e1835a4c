package memory

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// PrintDetailedMap writes the arena statistics and the classified block list as
// members of the JSON object json.
func (a *Arena) PrintDetailedMap(json *jwriter.ObjectState) {
	stats := a.Statistics()
	json.Name("TotalMemory").Int(int(stats.Total))
	json.Name("FreeMemory").Int(int(stats.FreeMemory))
	json.Name("UsedMemory").Int(int(stats.UsedMemory))
	json.Name("Blocks").Int(stats.BlockCount)
	json.Name("FreeBlocks").Int(stats.FreeBlockCount)
	json.Name("ActiveProcesses").Int(stats.ActiveProcesses)
	json.Name("BlockedProcesses").Int(stats.BlockedProcesses)

	frag := json.Name("Fragmentation").Object()
	printFragmentation(&frag, stats.Fragmentation)
	frag.End()

	arr := json.Name("Map").Array()
	defer arr.End()
	for _, e := range a.MemoryMap() {
		printMapEntry(&arr, e)
	}
}

func printFragmentation(json *jwriter.ObjectState, s FragmentationStats) {
	json.Name("External").Int(int(s.ExternalAbs))
	json.Name("Internal").Int(int(s.InternalAbs))
	json.Name("Total").Int(int(s.TotalAbs))
	json.Name("ExternalPct").Float64(s.ExternalPct)
	json.Name("InternalPct").Float64(s.InternalPct)
	json.Name("TotalPct").Float64(s.TotalPct)
}

func printMapEntry(json *jwriter.ArrayState, e MapEntry) {
	obj := json.Object()
	defer obj.End()

	obj.Name("Start").Int(int(e.Start))
	obj.Name("End").Int(int(e.End))
	obj.Name("Size").Int(int(e.Size))
	if e.Free {
		obj.Name("Type").String("free")
		obj.Name("Fragment").Bool(e.Fragment)
		obj.Name("Small").Bool(e.Small)
		obj.Name("ContributesExternal").Bool(e.ContributesExternal)
		return
	}
	obj.Name("Type").String("occupied")
	obj.Name("PID").Int(int(e.Owner))
}

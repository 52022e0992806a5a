package engine

import "strconv"

// Command describes one invocation of the external docking engine. The only
// caller-influenced values are whitelisted fields: the project-derived paths
// and suffix, and the replicate count.
type Command struct {
	Bin          string
	OptionsFile  string
	ProtocolFile string
	ComplexPath  string
	ScoreFile    string
	OutSuffix    string
	NStruct      int
}

// Args builds the deterministic engine command line.
func (c Command) Args() []string {
	return []string{
		"@" + c.OptionsFile,
		"-parser:protocol", c.ProtocolFile,
		"-s", c.ComplexPath,
		"-out:file:scorefile", c.ScoreFile,
		"-out:suffix", c.OutSuffix,
		"-nstruct", strconv.Itoa(c.NStruct),
		"-overwrite",
	}
}

package diet

// Curated metabolite tables for host coupling and human-derived gut
// metabolites. Identifiers follow the VMH namespace used by the organism
// reconstructions.

// HostBloodAllow lists the host body-fluid exchanges left open when the
// constraint policy closes blood uptake, with their lower bounds. Water,
// bicarbonate, and oxygen stay available to the host.
var HostBloodAllow = map[string]float64{
	"Host_EX_h2o[b]":  -100,
	"Host_EX_hco3[b]": -100,
	"Host_EX_o2[b]":   -100,
}

// HostLumenAllow lists base metabolite names the host may secrete into the
// lumen after the policy closes host lumen uptake: primary bile acids and
// related host-derived species. Their transporter lower bounds open to
// -1000.
var HostLumenAllow = []string{
	"gchola",
	"tchola",
	"tdchola",
	"dgchol",
	"cholate",
	"12dhchol",
	"7dhchol",
	"7ocholate",
	"uchol",
}

// HumanMets maps human-derived gut metabolites (bile acids, amines, mucins,
// host glycans) to the minimum uptake flux unlocked when the
// include-human-metabolites toggle is on. Keys are base metabolite names;
// the policy resolves them to Diet_EX_<m>[d] reactions.
var HumanMets = map[string]float64{
	// Bile acids
	"gchola":  -0.15,
	"tdchola": -0.15,
	"tchola":  -0.15,
	"dgchol":  -0.15,
	// Amines and aromatic amino acid derivatives
	"34dhphe": -0.5,
	"5htrp":   -0.5,
	"Lkynr":   -0.5,
	"f1a":     -1,
	// Mucin cores and host glycans
	"gncore1":     -1,
	"gncore2":     -1,
	"dsT_antigen": -1,
	"sTn_antigen": -1,
	"core8":       -1,
	"core7":       -1,
	"core5":       -1,
	"core4":       -1,
	// Glycosaminoglycans
	"ha":     -1,
	"cspg_a": -1,
	"cspg_b": -1,
	"cspg_c": -1,
	"cspg_d": -1,
	"cspg_e": -1,
	"hspg":   -1,
}

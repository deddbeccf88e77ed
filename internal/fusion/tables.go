package fusion

// categoryKeywords biases embeddings toward beauty/service vocabulary per category.
var categoryKeywords = map[string][]string{
	"hair":     {"hairstyle", "haircut", "hair color", "balayage", "blowout", "layers", "texture"},
	"nails":    {"manicure", "nail art", "gel polish", "acrylic", "nail shape", "cuticle care"},
	"makeup":   {"makeup look", "eyeshadow", "foundation", "contour", "lip color", "eyeliner"},
	"lashes":   {"lash extensions", "lash lift", "volume lashes", "lash curl", "lash mapping"},
	"brows":    {"brow shaping", "brow lamination", "microblading", "brow tint", "arch"},
	"skincare": {"facial", "skin texture", "glow", "complexion", "skin treatment"},
	"barber":   {"men's haircut", "fade", "beard trim", "line up", "taper", "shave"},
	"tattoo":   {"tattoo design", "linework", "shading", "ink", "flash tattoo"},
	"spa":      {"spa treatment", "massage", "relaxation", "body treatment", "wellness"},
}

// contrastPair names a style, a neighbouring style it resembles and the style it is furthest from.
type contrastPair struct {
	Style    string
	Similar  string
	Opposite string
}

// contrastTable sharpens boundaries between adjacent styles within a category.
// The first row of each category is the fallback when no tag names a style.
var contrastTable = map[string][]contrastPair{
	"hair": {
		{Style: "natural", Similar: "soft waves", Opposite: "high-contrast color"},
		{Style: "balayage", Similar: "ombre", Opposite: "solid single-process color"},
		{Style: "bob", Similar: "lob", Opposite: "long layers"},
		{Style: "curls", Similar: "defined coils", Opposite: "sleek straight"},
		{Style: "pixie", Similar: "short crop", Opposite: "long flowing hair"},
	},
	"nails": {
		{Style: "minimalist", Similar: "nude sheer", Opposite: "maximalist 3d art"},
		{Style: "french", Similar: "micro french", Opposite: "full-color chrome"},
		{Style: "chrome", Similar: "metallic", Opposite: "matte nude"},
		{Style: "almond", Similar: "oval", Opposite: "square"},
	},
	"makeup": {
		{Style: "natural", Similar: "no-makeup makeup", Opposite: "full glam"},
		{Style: "glam", Similar: "evening glam", Opposite: "bare skin"},
		{Style: "smoky", Similar: "smokey eye", Opposite: "fresh dewy"},
		{Style: "editorial", Similar: "graphic liner", Opposite: "everyday natural"},
	},
	"lashes": {
		{Style: "classic", Similar: "natural set", Opposite: "mega volume"},
		{Style: "volume", Similar: "hybrid set", Opposite: "classic single"},
		{Style: "wispy", Similar: "kim k wispy", Opposite: "uniform doll eye"},
	},
	"brows": {
		{Style: "natural", Similar: "brushed up", Opposite: "sharp sculpted"},
		{Style: "laminated", Similar: "fluffy brows", Opposite: "thin arched"},
		{Style: "microblading", Similar: "hair strokes", Opposite: "powder ombre"},
	},
	"skincare": {
		{Style: "hydrating", Similar: "dewy glow", Opposite: "matte finish"},
		{Style: "peel", Similar: "resurfacing", Opposite: "gentle hydration"},
	},
	"barber": {
		{Style: "fade", Similar: "taper", Opposite: "long flow"},
		{Style: "buzz", Similar: "crew cut", Opposite: "textured crop"},
		{Style: "beard", Similar: "beard sculpt", Opposite: "clean shave"},
	},
	"tattoo": {
		{Style: "fine line", Similar: "single needle", Opposite: "bold traditional"},
		{Style: "traditional", Similar: "neo traditional", Opposite: "fine line"},
		{Style: "blackwork", Similar: "dotwork", Opposite: "watercolor"},
	},
	"spa": {
		{Style: "relaxing", Similar: "aromatherapy", Opposite: "deep tissue"},
		{Style: "deep tissue", Similar: "sports massage", Opposite: "light swedish"},
	},
}

// Categories returns the supported category identifiers.
func Categories() []string {
	out := make([]string, 0, len(categoryKeywords))
	for c := range categoryKeywords {
		out = append(out, c)
	}
	return out
}

package canonical

// Entry is the reference data for one canonical generic drug. Classes are
// ordered most specific first; the safety rules rely on that order when they
// pick the class to report.
type Entry struct {
	Classes []string
	Aliases []string
}

// DefaultTable is the built-in alias and therapeutic class table.
var DefaultTable = map[string]Entry{
	// Lipid lowering
	"atorvastatin": {Classes: []string{"statin", "lipid-lowering", "cardiovascular"}, Aliases: []string{"lipitor"}},
	"simvastatin":  {Classes: []string{"statin", "lipid-lowering", "cardiovascular"}, Aliases: []string{"zocor"}},
	"rosuvastatin": {Classes: []string{"statin", "lipid-lowering", "cardiovascular"}, Aliases: []string{"crestor"}},
	"pravastatin":  {Classes: []string{"statin", "lipid-lowering", "cardiovascular"}, Aliases: []string{"pravachol"}},
	"ezetimibe":    {Classes: []string{"cholesterol-absorption-inhibitor", "lipid-lowering", "cardiovascular"}, Aliases: []string{"zetia"}},

	// Blood pressure
	"lisinopril":          {Classes: []string{"ace-inhibitor", "antihypertensive", "cardiovascular"}, Aliases: []string{"zestril", "prinivil"}},
	"enalapril":           {Classes: []string{"ace-inhibitor", "antihypertensive", "cardiovascular"}, Aliases: []string{"vasotec"}},
	"ramipril":            {Classes: []string{"ace-inhibitor", "antihypertensive", "cardiovascular"}, Aliases: []string{"altace"}},
	"losartan":            {Classes: []string{"arb", "antihypertensive", "cardiovascular"}, Aliases: []string{"cozaar"}},
	"valsartan":           {Classes: []string{"arb", "antihypertensive", "cardiovascular"}, Aliases: []string{"diovan"}},
	"metoprolol":          {Classes: []string{"beta-blocker", "antihypertensive", "cardiovascular"}, Aliases: []string{"lopressor", "toprol", "toprol xl"}},
	"atenolol":            {Classes: []string{"beta-blocker", "antihypertensive", "cardiovascular"}, Aliases: []string{"tenormin"}},
	"carvedilol":          {Classes: []string{"beta-blocker", "antihypertensive", "cardiovascular"}, Aliases: []string{"coreg"}},
	"propranolol":         {Classes: []string{"beta-blocker", "antihypertensive", "cardiovascular"}, Aliases: []string{"inderal"}},
	"amlodipine":          {Classes: []string{"calcium-channel-blocker", "antihypertensive", "cardiovascular"}, Aliases: []string{"norvasc"}},
	"diltiazem":           {Classes: []string{"non-dihydropyridine-ccb", "calcium-channel-blocker", "antihypertensive", "cardiovascular"}, Aliases: []string{"cardizem"}},
	"verapamil":           {Classes: []string{"non-dihydropyridine-ccb", "calcium-channel-blocker", "antihypertensive", "cardiovascular"}, Aliases: []string{"calan"}},
	"hydrochlorothiazide": {Classes: []string{"thiazide-diuretic", "diuretic", "antihypertensive", "cardiovascular"}, Aliases: []string{"hctz", "microzide"}},
	"furosemide":          {Classes: []string{"loop-diuretic", "diuretic", "cardiovascular"}, Aliases: []string{"lasix"}},
	"spironolactone":      {Classes: []string{"potassium-sparing-diuretic", "diuretic", "cardiovascular"}, Aliases: []string{"aldactone"}},
	"lisinopril-hydrochlorothiazide": {
		Classes: []string{"ace-inhibitor", "thiazide-diuretic", "antihypertensive", "cardiovascular"},
		Aliases: []string{"zestoretic", "hctz/lisinopril", "lisinopril/hctz", "lisinopril/hydrochlorothiazide"},
	},

	// Heart rhythm and nitrates
	"digoxin":                {Classes: []string{"cardiac-glycoside", "cardiovascular"}, Aliases: []string{"lanoxin"}},
	"amiodarone":             {Classes: []string{"antiarrhythmic", "cardiovascular"}, Aliases: []string{"pacerone", "cordarone"}},
	"nitroglycerin":          {Classes: []string{"nitrate", "cardiovascular"}, Aliases: []string{"nitrostat", "nitro"}},
	"isosorbide mononitrate": {Classes: []string{"nitrate", "cardiovascular"}, Aliases: []string{"imdur", "isosorbide"}},

	// Blood thinners
	"warfarin":    {Classes: []string{"anticoagulant", "cardiovascular"}, Aliases: []string{"coumadin", "jantoven"}},
	"apixaban":    {Classes: []string{"anticoagulant", "cardiovascular"}, Aliases: []string{"eliquis"}},
	"rivaroxaban": {Classes: []string{"anticoagulant", "cardiovascular"}, Aliases: []string{"xarelto"}},
	"clopidogrel": {Classes: []string{"antiplatelet", "cardiovascular"}, Aliases: []string{"plavix"}},

	// Pain and inflammation
	"aspirin":       {Classes: []string{"nsaid", "antiplatelet", "analgesic"}, Aliases: []string{"asa", "bayer", "ecotrin", "acetylsalicylic acid"}},
	"ibuprofen":     {Classes: []string{"nsaid", "analgesic"}, Aliases: []string{"advil", "motrin"}},
	"naproxen":      {Classes: []string{"nsaid", "analgesic"}, Aliases: []string{"aleve", "naprosyn"}},
	"celecoxib":     {Classes: []string{"nsaid", "analgesic"}, Aliases: []string{"celebrex"}},
	"acetaminophen": {Classes: []string{"analgesic"}, Aliases: []string{"tylenol", "paracetamol", "apap"}},
	"tramadol":      {Classes: []string{"opioid", "analgesic"}, Aliases: []string{"ultram"}},
	"oxycodone":     {Classes: []string{"opioid", "analgesic"}, Aliases: []string{"oxycontin", "roxicodone"}},
	"hydrocodone":   {Classes: []string{"opioid", "analgesic"}, Aliases: []string{"norco", "vicodin"}},
	"morphine":      {Classes: []string{"opioid", "analgesic"}, Aliases: []string{"ms contin"}},
	"prednisone":    {Classes: []string{"corticosteroid"}, Aliases: []string{"deltasone"}},
	"methotrexate":  {Classes: []string{"antimetabolite", "dmard"}, Aliases: []string{"trexall", "otrexup"}},

	// Antibiotics
	"amoxicillin":                   {Classes: []string{"penicillin", "antibiotic"}, Aliases: []string{"amoxil"}},
	"penicillin":                    {Classes: []string{"penicillin", "antibiotic"}, Aliases: []string{"penicillin v", "pen vk"}},
	"ampicillin":                    {Classes: []string{"penicillin", "antibiotic"}, Aliases: []string{"principen"}},
	"amoxicillin-clavulanate":       {Classes: []string{"penicillin", "antibiotic"}, Aliases: []string{"augmentin", "amoxicillin/clavulanate"}},
	"cephalexin":                    {Classes: []string{"cephalosporin", "antibiotic"}, Aliases: []string{"keflex"}},
	"cefdinir":                      {Classes: []string{"cephalosporin", "antibiotic"}, Aliases: []string{"omnicef"}},
	"ceftriaxone":                   {Classes: []string{"cephalosporin", "antibiotic"}, Aliases: []string{"rocephin"}},
	"azithromycin":                  {Classes: []string{"macrolide", "antibiotic"}, Aliases: []string{"zithromax", "z-pak", "zpak"}},
	"clarithromycin":                {Classes: []string{"macrolide", "antibiotic"}, Aliases: []string{"biaxin"}},
	"ciprofloxacin":                 {Classes: []string{"fluoroquinolone", "antibiotic"}, Aliases: []string{"cipro"}},
	"levofloxacin":                  {Classes: []string{"fluoroquinolone", "antibiotic"}, Aliases: []string{"levaquin"}},
	"doxycycline":                   {Classes: []string{"tetracycline", "antibiotic"}, Aliases: []string{"vibramycin", "doryx"}},
	"sulfamethoxazole-trimethoprim": {Classes: []string{"sulfonamide", "antibiotic"}, Aliases: []string{"bactrim", "septra", "smx-tmp"}},

	// Diabetes
	"metformin":        {Classes: []string{"biguanide", "antidiabetic"}, Aliases: []string{"glucophage"}},
	"glipizide":        {Classes: []string{"sulfonylurea", "antidiabetic"}, Aliases: []string{"glucotrol"}},
	"insulin glargine": {Classes: []string{"insulin", "antidiabetic"}, Aliases: []string{"lantus", "basaglar"}},
	"sitagliptin":      {Classes: []string{"dpp-4-inhibitor", "antidiabetic"}, Aliases: []string{"januvia"}},

	// Mental health and sleep
	"sertraline":   {Classes: []string{"ssri", "antidepressant"}, Aliases: []string{"zoloft"}},
	"fluoxetine":   {Classes: []string{"ssri", "antidepressant"}, Aliases: []string{"prozac"}},
	"escitalopram": {Classes: []string{"ssri", "antidepressant"}, Aliases: []string{"lexapro"}},
	"citalopram":   {Classes: []string{"ssri", "antidepressant"}, Aliases: []string{"celexa"}},
	"paroxetine":   {Classes: []string{"ssri", "antidepressant"}, Aliases: []string{"paxil"}},
	"venlafaxine":  {Classes: []string{"snri", "antidepressant"}, Aliases: []string{"effexor"}},
	"duloxetine":   {Classes: []string{"snri", "antidepressant"}, Aliases: []string{"cymbalta"}},
	"bupropion":    {Classes: []string{"ndri", "antidepressant"}, Aliases: []string{"wellbutrin", "zyban"}},
	"phenelzine":   {Classes: []string{"maoi", "antidepressant"}, Aliases: []string{"nardil"}},
	"selegiline":   {Classes: []string{"maoi"}, Aliases: []string{"emsam", "eldepryl"}},
	"lithium":      {Classes: []string{"mood-stabilizer"}, Aliases: []string{"lithobid"}},
	"alprazolam":   {Classes: []string{"benzodiazepine", "anxiolytic"}, Aliases: []string{"xanax"}},
	"lorazepam":    {Classes: []string{"benzodiazepine", "anxiolytic"}, Aliases: []string{"ativan"}},
	"diazepam":     {Classes: []string{"benzodiazepine", "anxiolytic"}, Aliases: []string{"valium"}},
	"zolpidem":     {Classes: []string{"sedative-hypnotic"}, Aliases: []string{"ambien"}},
	"quetiapine":   {Classes: []string{"atypical-antipsychotic", "antipsychotic"}, Aliases: []string{"seroquel"}},
	"gabapentin":   {Classes: []string{"gabapentinoid", "anticonvulsant"}, Aliases: []string{"neurontin"}},

	// Stomach, thyroid, other
	"omeprazole":         {Classes: []string{"ppi", "acid-reducer"}, Aliases: []string{"prilosec"}},
	"pantoprazole":       {Classes: []string{"ppi", "acid-reducer"}, Aliases: []string{"protonix"}},
	"famotidine":         {Classes: []string{"h2-blocker", "acid-reducer"}, Aliases: []string{"pepcid"}},
	"levothyroxine":      {Classes: []string{"thyroid-hormone"}, Aliases: []string{"synthroid", "levoxyl", "unithroid"}},
	"sildenafil":         {Classes: []string{"pde5-inhibitor"}, Aliases: []string{"viagra", "revatio"}},
	"tadalafil":          {Classes: []string{"pde5-inhibitor"}, Aliases: []string{"cialis"}},
	"tizanidine":         {Classes: []string{"muscle-relaxant"}, Aliases: []string{"zanaflex"}},
	"albuterol":          {Classes: []string{"beta-agonist", "bronchodilator"}, Aliases: []string{"proair", "ventolin", "proventil"}},
	"montelukast":        {Classes: []string{"leukotriene-antagonist"}, Aliases: []string{"singulair"}},
	"cetirizine":         {Classes: []string{"antihistamine"}, Aliases: []string{"zyrtec"}},
	"calcium carbonate":  {Classes: []string{"calcium-supplement", "antacid", "supplement"}, Aliases: []string{"tums", "os-cal"}},
	"potassium chloride": {Classes: []string{"potassium-supplement", "supplement"}, Aliases: []string{"klor-con", "k-dur"}},
	"vitamin d":          {Classes: []string{"vitamin", "supplement"}, Aliases: []string{"cholecalciferol", "vitamin d3"}},
}

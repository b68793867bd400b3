package daap

// certificateHex is sent as the keyboard string on the initial control prompt.
// Remotes expect it but never verify it.
const certificateHex = "308202C33082022CA003020102020D3333AF080604AF0001AF000001300D06092A864886F70D0101050500307B310B30" +
	"0906035504061302555331133011060355040A130A4170706C6520496E632E31263024060355040B131D4170706C6520" +
	"43657274696669636174696F6E20417574686F72697479312F302D060355040313264170706C652046616972506C6179" +
	"2043657274696669636174696F6E20417574686F72697479301E170D3038303630343231333030315A170D3133303630" +
	"333231333030315A3066310B300906035504061302555331133011060355040A130A4170706C6520496E632E31173015" +
	"060355040B130E4170706C652046616972506C61793129302706035504031320526F7369652E33333333414630383036" +
	"3034414630303031414630303030303130819F300D06092A864886F70D010101050003818D0030818902818100DCB602" +
	"85A26C6B4DE502C49C842A527176C0185B082DCE6C646B55A2640706A6967DED8F23C8542E284107A9A22709E1056E93" +
	"4BC3C4F01798BD54391829490665205F296E9BE2595E0419AEDEDA77D44560CC7AF1E3A72F37EFE9AED51263ED0807FE" +
	"D2CCB723F51D08CD8DFB41F675770671E03C29E29E39C53161057453BD0203010001A360305E300E0603551D0F0101FF" +
	"0404030203B8300C0603551D130101FF04023000301D0603551D0E041604148F4E4787070D6D84FD1F307932107EBC04" +
	"CEAC55301F0603551D23041830168014FA0DD411911BE6B24E1E06499411DD6362075964300D06092A864886F70D0101" +
	"05050003818100153F2F1572D279E5DB1E1776CCA603131D7788B598BD1EFC7C1703A40A06C905C762CE1665440912A1" +
	"BCA88F766861C436543A1A9AB536DEB479BF2803F383E92A75B7360B47B8197387A6BB4EB82554C6762C06C4E236A890" +
	"139396F56138C1B69395FCFED8CB74BF94D91E0E98F6F8276A2B49172847498A5843847ED00FC8"
